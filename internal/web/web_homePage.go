package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HomePageData represents data for the index page
type HomePageData struct {
	TemplateData
	Greeting string
}

func (s *WebServer) homePage(c *gin.Context) {
	data := HomePageData{
		TemplateData: s.getBaseTemplateData(c, "Home"),
		Greeting:     "Hello, World!",
	}
	s.renderTemplate(c, http.StatusOK, "index.html", data)
}

// User manager for the go-myapp admin site
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-while/go-myapp/internal/config"
	"github.com/go-while/go-myapp/internal/database"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	log.Printf("go-myapp User Manager (version: %s)", config.AppVersion)
	var (
		createUser = flag.Bool("create", false, "Create a new user")
		listUsers  = flag.Bool("list", false, "List all users")
		deleteUser = flag.Bool("delete", false, "Delete a user")
		updateUser = flag.Bool("update", false, "Update a user's password")
		grantAdmin = flag.Bool("grant-admin", false, "Grant admin permission to an existing user")
		username   = flag.String("username", "", "Username for user operations")
		email      = flag.String("email", "", "Email for user creation")
		display    = flag.String("display", "", "Display name for user creation")
		admin      = flag.Bool("admin", false, "Grant admin permission when creating the user")
		yes        = flag.Bool("yes", false, "Do not ask for confirmation on delete")
		dataDir    = flag.String("data", "", "Data directory (default: ./data)")
		configFile = flag.String("config", "", "YAML config file (optional)")
	)
	flag.Parse()

	if !*createUser && !*listUsers && !*deleteUser && !*updateUser && !*grantAdmin {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -create -username john -email john@example.com -display \"John Doe\" -admin\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -update -username john\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -grant-admin -username john\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -delete -username john\n", os.Args[0])
		os.Exit(1)
	}

	mainConfig := config.NewDefaultConfig()
	if *configFile != "" {
		if err := mainConfig.LoadFile(*configFile); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	dbconfig := database.DefaultDBConfig()
	dbconfig.DataDir = mainConfig.Database.DataDir
	if *dataDir != "" {
		dbconfig.DataDir = *dataDir
	}

	db, err := database.OpenDatabase(dbconfig)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Shutdown()

	m := &manager{db: db, out: os.Stdout, in: os.Stdin, readPassword: readTerminalPassword}

	switch {
	case *createUser:
		err = m.create(*username, *email, *display, *admin)
	case *listUsers:
		err = m.list()
	case *deleteUser:
		err = m.delete(*username, *yes)
	case *updateUser:
		err = m.updatePassword(*username)
	case *grantAdmin:
		err = m.grantAdmin(*username)
	}
	if err != nil {
		db.Shutdown()
		log.Fatalf("usermgr: %v", err)
	}
}

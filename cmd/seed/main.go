// Seeds demo accounts through the configured store adapter so the same data
// lands in whichever backend is active.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/halcyonlab/usergate/config"
	"github.com/halcyonlab/usergate/internal/store"
	"github.com/halcyonlab/usergate/internal/store/document"
	"github.com/halcyonlab/usergate/internal/store/relational"
	"github.com/halcyonlab/usergate/pkg/helpers"
)

type seedUser struct {
	firstname string
	lastname  string
	username  string
	email     string
	password  string
}

var demoUsers = []seedUser{
	{"Jamie", "Lanister", "jamie", "jamie@casterlyrock.example", "GoldenHand1"},
	{"Ada", "Lovelace", "ada", "ada@analytical.example", "FirstProgram1"},
	{"Grace", "Hopper", "grace", "grace@navy.example", "Compiler1952"},
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logrus.New()

	stores := store.NewRegistry(logger)
	stores.Register("document", document.New)
	stores.Register("relational", relational.New)

	opts := store.Options{
		Adapter:     cfg.StoreAdapter,
		Host:        cfg.StoreHost,
		Port:        cfg.StorePort,
		User:        cfg.StoreUser,
		Pass:        cfg.StorePass,
		Engine:      cfg.StoreEngine,
		DBName:      cfg.StoreDBName,
		StoragePath: cfg.StorePath,
	}

	ctx := context.Background()
	binding, err := stores.Open(ctx, "", opts)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer func() { _ = stores.Close(context.Background()) }()

	for _, su := range demoUsers {
		hash, err := helpers.HashPassword(su.password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		u, err := binding.Adapter.CreateUser(ctx, store.CreateFields{
			Firstname: su.firstname,
			Lastname:  su.lastname,
			Username:  su.username,
			Email:     su.email,
			Password:  hash,
		})
		if err != nil {
			var exists *store.UserExistsError
			if errors.As(err, &exists) {
				fmt.Printf("skipped %s: already present\n", su.username)
				continue
			}
			log.Fatalf("seed %s: %v", su.username, err)
		}
		fmt.Printf("seeded %s id=%s email=%s password=%s\n", u.Username, u.ID, u.Email, su.password)
	}
}

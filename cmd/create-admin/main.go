// Command create-admin bootstraps the first administrator account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/openaid/aid-inventory/internal/auth"
	"github.com/openaid/aid-inventory/internal/users"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/enums"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/migrate"
	"github.com/openaid/aid-inventory/pkg/security"
)

const (
	passwordEnv           = "AIDINV_ADMIN_PASSWORD"
	generatedPasswordSize = 16
)

type adminInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

func main() {
	var in adminInput
	flag.StringVar(&in.Username, "username", "admin", "administrator username")
	flag.StringVar(&in.Email, "email", "", "administrator email")
	flag.StringVar(&in.Password, "password", "", "administrator password (defaults to $"+passwordEnv+")")
	flag.StringVar(&in.FullName, "full-name", "", "optional display name")
	generate := flag.Bool("generate-password", false, "generate a temporary password and print it once")
	flag.Parse()

	_ = godotenv.Load()
	password, generated, err := resolvePassword(in.Password, os.Getenv(passwordEnv), *generate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create-admin: %v\n", err)
		os.Exit(1)
	}
	in.Password = password

	logg := logger.New(logger.Options{ServiceName: "create-admin"})
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	user, err := createAdmin(ctx, users.NewRepository(dbClient.DB()), cfg.Password, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create-admin: %v\n", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"user_id":  user.ID.String(),
		"username": user.Username,
	}), "administrator created")
	fmt.Printf("created admin %s (%s)\n", user.Username, user.ID)
	if generated {
		fmt.Printf("temporary password: %s\n", password)
	}
}

// resolvePassword picks the flag, then the environment, then a generated
// password when asked for one.
func resolvePassword(flagValue, envValue string, generate bool) (string, bool, error) {
	switch {
	case flagValue != "":
		return flagValue, false, nil
	case envValue != "":
		return envValue, false, nil
	case generate:
		password, err := security.GenerateTempPassword(generatedPasswordSize)
		return password, err == nil, err
	}
	return "", false, nil
}

type userStore interface {
	Exists(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

func createAdmin(ctx context.Context, store userStore, passwordCfg config.PasswordConfig, in adminInput) (*users.UserDTO, error) {
	if in.Email == "" {
		return nil, errors.New("missing -email")
	}
	if in.Password == "" {
		return nil, fmt.Errorf("missing -password or $%s", passwordEnv)
	}
	register, err := auth.NewRegisterService(auth.RegisterServiceParams{Users: store, PasswordConfig: passwordCfg})
	if err != nil {
		return nil, err
	}
	req := auth.RegisterRequest{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Role:     enums.UserRoleAdmin,
	}
	if in.FullName != "" {
		req.FullName = &in.FullName
	}
	return register.Register(ctx, req)
}

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Settings holds runtime configuration owned by the shop operator. The
// database row is the single source of truth; the JSON file is only a
// one-time bootstrap seed.
type Settings struct {
	Admin         Admin         `json:"admin"`
	Payment       Payment       `json:"payment"`
	Notifications Notifications `json:"notifications"`
}

type Admin struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
}

type Payment struct {
	Mpesa Mpesa `json:"mpesa"`
}

type Mpesa struct {
	BusinessNumber string `json:"businessNumber"`
	Type           string `json:"type"`
	AccountNumber  string `json:"accountNumber"`
}

type Notifications struct {
	AdminEmail               string `json:"adminEmail"`
	SendOrderNotifications   bool   `json:"sendOrderNotifications"`
	SendPaymentNotifications bool   `json:"sendPaymentNotifications"`
}

func Defaults() Settings {
	return Settings{
		Notifications: Notifications{
			SendOrderNotifications:   true,
			SendPaymentNotifications: true,
		},
		Payment: Payment{Mpesa: Mpesa{Type: "pochi_la_biashara"}},
	}
}

const settingsKey = "app"

type Store struct {
	DB  *pgxpool.Pool
	Log *zap.Logger
}

func (s *Store) Load(ctx context.Context) (Settings, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, settingsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	out := Defaults()
	if err := json.Unmarshal(raw, &out); err != nil {
		return Settings{}, err
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, v Settings) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO settings(key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		settingsKey, raw)
	return err
}

// seedFile is the legacy on-disk shape; its password field is plaintext and
// gets hashed before it ever reaches storage.
type seedFile struct {
	Admin struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	} `json:"admin"`
	Payment       Payment       `json:"payment"`
	Notifications Notifications `json:"notifications"`
}

// Bootstrap seeds the settings row from the JSON file when the database has
// none yet. Subsequent runs leave the database untouched.
func (s *Store) Bootstrap(ctx context.Context, path string) (Settings, error) {
	var exists bool
	if err := s.DB.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM settings WHERE key=$1)`, settingsKey).Scan(&exists); err != nil {
		return Settings{}, err
	}
	if exists {
		return s.Load(ctx)
	}

	seeded := Defaults()
	raw, err := os.ReadFile(path)
	if err == nil {
		var seed seedFile
		if err := json.Unmarshal(raw, &seed); err != nil {
			return Settings{}, err
		}
		seeded.Admin.Email = seed.Admin.Email
		if seed.Admin.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(seed.Admin.Password), bcrypt.DefaultCost)
			if err != nil {
				return Settings{}, err
			}
			seeded.Admin.PasswordHash = string(hash)
		}
		if seed.Payment.Mpesa.BusinessNumber != "" {
			seeded.Payment = seed.Payment
		}
		if seed.Notifications.AdminEmail != "" {
			seeded.Notifications = seed.Notifications
		}
		s.Log.Info("settings seeded from file", zap.String("path", path))
	} else if !os.IsNotExist(err) {
		return Settings{}, err
	}

	if err := s.Save(ctx, seeded); err != nil {
		return Settings{}, err
	}
	return seeded, nil
}

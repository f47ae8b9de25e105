package devserver

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/sharefold/sharefold/internal/constants"
	"github.com/sharefold/sharefold/internal/models"
)

// Object store kinds.
const (
	ObjectStoreLocal = "local"
	ObjectStoreS3    = "s3"
	ObjectStoreAzure = "azure"
)

// Config is the devserver configuration.
//
// INI format:
//
//	[server]
//	addr = 127.0.0.1:8080
//	public_url = http://127.0.0.1:8080
//	jwt_secret = change-me
//	admin_password = ChangeMe123!
//	max_upload_bytes = 1073741824
//
//	[objects]
//	store = local            ; local, s3 or azure
//	dir =                    ; local only; empty keeps blobs in memory
//
//	[s3]
//	bucket = sharefold
//	region = us-east-1
//	endpoint = http://127.0.0.1:9000
//	access_key =
//	secret_key =
//
//	[azure]
//	account =
//	key =
//	container = sharefold
//
//	[user:alice]
//	password = secret
//	role = uploader
//
//	[folder:finance]
//	name = Finance
//	parent = ROOT
//	users = alice,bob
type Config struct {
	Addr           string
	PublicURL      string
	JWTSecret      string
	AdminPassword  string
	MaxUploadBytes int64

	ObjectStore string
	BlobDir     string

	S3    S3Config
	Azure AzureConfig

	Users   []UserSeed
	Folders []models.Folder
}

// S3Config locates an S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// AzureConfig locates an Azure Blob container.
type AzureConfig struct {
	Account   string
	Key       string
	Container string
}

// UserSeed is an account created at startup.
type UserSeed struct {
	Username           string
	Password           string
	Role               models.Role
	MustChangePassword bool
}

var (
	ErrMissingSecret    = errors.New("jwt_secret is required")
	ErrUnknownStore     = errors.New("objects store must be one of local, s3, azure")
	ErrMissingBucket    = errors.New("s3 bucket is required")
	ErrMissingContainer = errors.New("azure account, key and container are required")
)

// NewConfig returns a Config with defaults: local in-memory objects and a
// seeded admin who must change the password on first login.
func NewConfig() *Config {
	return &Config{
		Addr:           constants.DefaultDevserverAddr,
		AdminPassword:  constants.DefaultAdminPassword,
		MaxUploadBytes: constants.MaxUploadSize,
		ObjectStore:    ObjectStoreLocal,
		S3:             S3Config{Region: "us-east-1"},
	}
}

// LoadConfig reads a devserver INI file. A missing path yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load devserver config: %w", err)
	}

	server := f.Section("server")
	cfg.Addr = server.Key("addr").MustString(cfg.Addr)
	cfg.PublicURL = server.Key("public_url").String()
	cfg.JWTSecret = server.Key("jwt_secret").String()
	cfg.AdminPassword = server.Key("admin_password").MustString(cfg.AdminPassword)
	cfg.MaxUploadBytes = server.Key("max_upload_bytes").MustInt64(cfg.MaxUploadBytes)

	objects := f.Section("objects")
	cfg.ObjectStore = objects.Key("store").MustString(cfg.ObjectStore)
	cfg.BlobDir = objects.Key("dir").String()

	s3 := f.Section("s3")
	cfg.S3.Bucket = s3.Key("bucket").String()
	cfg.S3.Region = s3.Key("region").MustString(cfg.S3.Region)
	cfg.S3.Endpoint = s3.Key("endpoint").String()
	cfg.S3.AccessKey = s3.Key("access_key").String()
	cfg.S3.SecretKey = s3.Key("secret_key").String()

	az := f.Section("azure")
	cfg.Azure.Account = az.Key("account").String()
	cfg.Azure.Key = az.Key("key").String()
	cfg.Azure.Container = az.Key("container").MustString("sharefold")

	for _, sec := range f.Sections() {
		name := sec.Name()
		switch {
		case strings.HasPrefix(name, "user:"):
			cfg.Users = append(cfg.Users, UserSeed{
				Username:           strings.TrimPrefix(name, "user:"),
				Password:           sec.Key("password").String(),
				Role:               models.Role(sec.Key("role").MustString(string(models.RoleReader))),
				MustChangePassword: sec.Key("must_change_password").MustBool(false),
			})
		case strings.HasPrefix(name, "folder:"):
			var users []string
			for _, u := range sec.Key("users").Strings(",") {
				if u = strings.TrimSpace(u); u != "" {
					users = append(users, u)
				}
			}
			cfg.Folders = append(cfg.Folders, models.Folder{
				FolderID:       strings.TrimPrefix(name, "folder:"),
				FolderName:     sec.Key("name").MustString(strings.TrimPrefix(name, "folder:")),
				ParentFolderID: sec.Key("parent").MustString(models.RootFolderID),
				AssignedUsers:  users,
			})
		}
	}

	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}
	switch c.ObjectStore {
	case ObjectStoreLocal:
	case ObjectStoreS3:
		if c.S3.Bucket == "" {
			return ErrMissingBucket
		}
	case ObjectStoreAzure:
		if c.Azure.Account == "" || c.Azure.Key == "" || c.Azure.Container == "" {
			return ErrMissingContainer
		}
	default:
		return ErrUnknownStore
	}
	for _, u := range c.Users {
		if !u.Role.Valid() {
			return fmt.Errorf("user %s: unknown role %q", u.Username, u.Role)
		}
		if u.Password == "" {
			return fmt.Errorf("user %s: password is required", u.Username)
		}
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > constants.MaxUploadSize {
		c.MaxUploadBytes = constants.MaxUploadSize
	}
	return nil
}

// Seed creates the admin account plus the configured users and folders.
func Seed(store *Store, cfg *Config) error {
	admin := UserSeed{
		Username:           constants.DefaultAdminUsername,
		Password:           cfg.AdminPassword,
		Role:               models.RoleAdmin,
		MustChangePassword: true,
	}
	for _, u := range append([]UserSeed{admin}, cfg.Users...) {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		store.PutUser(User{
			Username:           u.Username,
			PasswordHash:       hash,
			Role:               u.Role,
			MustChangePassword: u.MustChangePassword,
		})
	}
	for _, f := range cfg.Folders {
		store.AddFolder(f)
	}
	return nil
}

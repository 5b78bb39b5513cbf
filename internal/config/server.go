package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LimitKind selects which messages of a folder a sync pulls.
type LimitKind string

const (
	LimitAll    LimitKind = "all"
	LimitLastN  LimitKind = "last_n"
	LimitDays   LimitKind = "days"
	LimitWeeks  LimitKind = "weeks"
	LimitMonths LimitKind = "months"
)

// SyncPolicy is a server's configured sync limit. Value is required and
// must be positive unless Kind is LimitAll.
type SyncPolicy struct {
	Kind  LimitKind
	Value *int
}

// ServerConfig holds configuration for a single IMAP server of one owner
type ServerConfig struct {
	ID    int64
	Owner string
	Name  string

	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool

	Policy       SyncPolicy
	Folders      []string
	ExcludeTrash bool

	LastSync *time.Time
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the connection settings. The sync policy is checked
// separately at sync time so one bad policy only fails that server's run.
func (s *ServerConfig) Validate() error {
	if s.Owner == "" {
		return fmt.Errorf("server %q: owner is required", s.Name)
	}
	if s.Name == "" {
		return fmt.Errorf("server for owner %q: name is required", s.Owner)
	}
	if s.Host == "" {
		return fmt.Errorf("server %s: host is required", s.Name)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server %s: invalid port %d", s.Name, s.Port)
	}
	if s.Username == "" {
		return fmt.Errorf("server %s: username is required", s.Name)
	}
	return nil
}

// ParseFolderList splits a comma-separated folder list, trimming names and
// dropping empty entries.
func ParseFolderList(s string) []string {
	return CleanFolders(strings.Split(s, ","))
}

// CleanFolders trims folder names and drops empty entries.
func CleanFolders(in []string) []string {
	var out []string
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type serversFile struct {
	Servers []serverEntry `mapstructure:"servers"`
}

type serverEntry struct {
	Owner        string   `mapstructure:"owner"`
	Name         string   `mapstructure:"name"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	UseTLS       *bool    `mapstructure:"use_tls"`
	LimitKind    string   `mapstructure:"sync_limit_type"`
	LimitValue   *int     `mapstructure:"sync_limit_value"`
	Folders      []string `mapstructure:"folders"`
	ExcludeTrash *bool    `mapstructure:"exclude_trash"`
}

// LoadServers reads server definitions from a YAML (or any viper-supported)
// file. Missing port, TLS and exclude-trash settings default to 993, true
// and true.
func LoadServers(path string) ([]ServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read servers file: %w", err)
	}

	var file serversFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode servers file: %w", err)
	}

	servers := make([]ServerConfig, 0, len(file.Servers))
	for i, e := range file.Servers {
		srv := e.toServerConfig()
		if err := srv.Validate(); err != nil {
			return nil, fmt.Errorf("servers[%d]: %w", i, err)
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

func (e serverEntry) toServerConfig() ServerConfig {
	srv := ServerConfig{
		Owner:        e.Owner,
		Name:         e.Name,
		Host:         e.Host,
		Port:         e.Port,
		Username:     e.Username,
		Password:     e.Password,
		UseTLS:       true,
		ExcludeTrash: true,
		Policy: SyncPolicy{
			Kind:  LimitKind(strings.ToLower(strings.TrimSpace(e.LimitKind))),
			Value: e.LimitValue,
		},
		Folders: CleanFolders(e.Folders),
	}
	if e.UseTLS != nil {
		srv.UseTLS = *e.UseTLS
	}
	if e.ExcludeTrash != nil {
		srv.ExcludeTrash = *e.ExcludeTrash
	}
	if srv.Port == 0 {
		srv.Port = 993
	}
	if srv.Policy.Kind == "" {
		srv.Policy.Kind = LimitAll
	}
	return srv
}

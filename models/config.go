package models

import (
	"fmt"
	"strings"
)

var Config TapConfig
var FULL_REFRESH bool

type TapConfig struct {
	BaseURL           string         `json:"base_url,omitempty"`
	APIVersion        string         `json:"api_version,omitempty"`
	StartDate         string         `json:"start_date,omitempty"`
	ReplicationKey    string         `json:"replication_key,omitempty"`
	SQLAttributeNames bool           `json:"sql_attribute_names,omitempty"`
	Annotations       bool           `json:"annotations,omitempty"`
	Auth              AuthConfig     `json:"auth,omitempty"`
	State             StateConfig    `json:"state,omitempty"`
	Streams           []StreamConfig `json:"streams,omitempty"`
}

type AuthConfig struct {
	TenantID     string `json:"tenant_id,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	TokenURL     string `json:"token_url,omitempty"`
}

type StateConfig struct {
	Backend string `json:"backend,omitempty"`
	Path    string `json:"path,omitempty"`
}

type StreamConfig struct {
	Name                string     `json:"name"`
	EntitySet           string     `json:"entity_set,omitempty"`
	QueryParams         string     `json:"query_params,omitempty"`
	StartDate           string     `json:"start_date,omitempty"`
	ReplicationKey      string     `json:"replication_key,omitempty"`
	UniqueKeyPath       []string   `json:"unique_key_path,omitempty"`
	DropFieldPaths      [][]string `json:"drop_field_paths,omitempty"`
	SensitiveFieldPaths [][]string `json:"sensitive_field_paths,omitempty"`
}

// ApplyDefaults resolves stream-level defaulting from the global config once,
// at load time. Streams are never mutated after this point.
func (c *TapConfig) ApplyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = "9.2"
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}

	for i := range c.Streams {
		stream := &c.Streams[i]
		if stream.EntitySet == "" {
			stream.EntitySet = stream.Name
		}
		if stream.StartDate == "" {
			stream.StartDate = c.StartDate
		}
		if stream.ReplicationKey == "" {
			stream.ReplicationKey = c.ReplicationKey
		}
	}
}

func (c *TapConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if len(c.Streams) == 0 {
		return fmt.Errorf("at least one stream is required")
	}
	for _, stream := range c.Streams {
		if stream.Name == "" {
			return fmt.Errorf("every stream requires a name")
		}
	}
	return nil
}

// URL returns the Dataverse Web API entity set URL for the stream
func (s *StreamConfig) URL() string {
	return fmt.Sprintf("%s/api/data/v%s/%s", strings.TrimRight(Config.BaseURL, "/"), Config.APIVersion, s.EntitySet)
}

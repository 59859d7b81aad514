package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskstore.yml: server settings plus the reference-data matrix
// the bootstrap seeds (organizations, roles with their permission sets, users
// and sample tasks).
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret       string `yaml:"jwt_secret"`
		TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	Seed SeedConfig `yaml:"seed"`
}

type SeedConfig struct {
	Organizations []SeedOrganization  `yaml:"organizations"`
	Permissions   []string            `yaml:"permissions"`
	Roles         map[string]SeedRole `yaml:"roles"`
	Users         []SeedUser          `yaml:"users"`
	Tasks         []SeedTask          `yaml:"tasks"`
}

type SeedOrganization struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`
}

type SeedRole struct {
	Permissions []string `yaml:"permissions"`
}

type SeedUser struct {
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	Role         string `yaml:"role"`
	Organization string `yaml:"organization"`
}

type SeedTask struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description,omitempty"`
	Category     string `yaml:"category"`
	Status       string `yaml:"status"`
	AssignedTo   string `yaml:"assigned_to"`
	Organization string `yaml:"organization"`
}

var knownRoles = map[string]bool{"Viewer": true, "Admin": true, "Owner": true}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Auth.TokenTTLMinutes < 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must not be negative")
	}
	permSet := map[string]bool{}
	for _, p := range c.Seed.Permissions {
		if p == "" {
			return fmt.Errorf("config.seed.permissions contains an empty name")
		}
		permSet[p] = true
	}
	orgSet := map[string]bool{}
	for _, o := range c.Seed.Organizations {
		if o.Name == "" {
			return fmt.Errorf("config.seed.organizations contains an empty name")
		}
		orgSet[o.Name] = true
	}
	for _, o := range c.Seed.Organizations {
		if o.Parent != "" && !orgSet[o.Parent] {
			return fmt.Errorf("organization %s references unknown parent %s", o.Name, o.Parent)
		}
	}
	for name, role := range c.Seed.Roles {
		if !knownRoles[name] {
			return fmt.Errorf("config.seed.roles contains unknown role %s", name)
		}
		for _, p := range role.Permissions {
			if !permSet[p] {
				return fmt.Errorf("role %s references unknown permission %s", name, p)
			}
		}
	}
	userSet := map[string]bool{}
	for _, u := range c.Seed.Users {
		if u.Email == "" {
			return fmt.Errorf("config.seed.users contains an empty email")
		}
		if _, ok := c.Seed.Roles[u.Role]; !ok {
			return fmt.Errorf("user %s references unknown role %s", u.Email, u.Role)
		}
		if !orgSet[u.Organization] {
			return fmt.Errorf("user %s references unknown organization %s", u.Email, u.Organization)
		}
		userSet[u.Email] = true
	}
	for _, t := range c.Seed.Tasks {
		if t.Title == "" {
			return fmt.Errorf("config.seed.tasks contains an empty title")
		}
		if t.AssignedTo != "" && !userSet[t.AssignedTo] {
			return fmt.Errorf("task %s references unknown user %s", t.Title, t.AssignedTo)
		}
		if !orgSet[t.Organization] {
			return fmt.Errorf("task %s references unknown organization %s", t.Title, t.Organization)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskstore.yml")
}

// Load reads and validates config from a workspace, falling back to defaults
// when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: ":8080"
  base_path: /v0

auth:
  jwt_secret: dev-secret-change-me
  token_ttl_minutes: 60

seed:
  organizations:
    - name: ParentOrg
    - name: ChildOrg
      parent: ParentOrg

  permissions:
    - create_task
    - edit_task
    - delete_task
    - view_task

  roles:
    Owner:
      permissions: [create_task, edit_task, delete_task, view_task]
    Admin:
      permissions: [create_task, edit_task, view_task]
    Viewer:
      permissions: [view_task]

  users:
    - email: owner@org.com
      password: pass
      role: Owner
      organization: ParentOrg
    - email: admin@org.com
      password: pass
      role: Admin
      organization: ChildOrg
    - email: viewer@org.com
      password: pass
      role: Viewer
      organization: ChildOrg

  tasks:
    - title: Sample Task
      description: This is a seeded task.
      category: Work
      status: Todo
      assigned_to: admin@org.com
      organization: ChildOrg
    - title: Personal Errand
      description: Buy groceries.
      category: Personal
      status: InProgress
      assigned_to: admin@org.com
      organization: ChildOrg
    - title: Finish Report
      description: Complete the quarterly report.
      category: Work
      status: Done
      assigned_to: admin@org.com
      organization: ChildOrg
`

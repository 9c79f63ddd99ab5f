// Package teamsapp builds the sideloadable Teams app package: manifest
// validation, icon placeholders, and the final zip.
package teamsapp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Manifest is the Teams app manifest (manifest.json).
type Manifest struct {
	Schema             string              `json:"$schema"`
	ManifestVersion    string              `json:"manifestVersion"`
	Version            string              `json:"version"`
	ID                 string              `json:"id"`
	PackageName        string              `json:"packageName"`
	Developer          Developer           `json:"developer"`
	Icons              Icons               `json:"icons"`
	Name               AppName             `json:"name"`
	Description        AppDescription      `json:"description"`
	AccentColor        string              `json:"accentColor"`
	Bots               []Bot               `json:"bots"`
	Permissions        []string            `json:"permissions,omitempty"`
	ValidDomains       []string            `json:"validDomains,omitempty"`
	WebApplicationInfo *WebApplicationInfo `json:"webApplicationInfo,omitempty"`
}

type Developer struct {
	Name          string `json:"name"`
	WebsiteURL    string `json:"websiteUrl"`
	PrivacyURL    string `json:"privacyUrl"`
	TermsOfUseURL string `json:"termsOfUseUrl"`
}

type Icons struct {
	Color   string `json:"color"`
	Outline string `json:"outline"`
}

type AppName struct {
	Short string `json:"short"`
	Full  string `json:"full"`
}

type AppDescription struct {
	Short string `json:"short"`
	Full  string `json:"full"`
}

type Bot struct {
	BotID              string             `json:"botId"`
	Scopes             []string           `json:"scopes"`
	SupportsFiles      bool               `json:"supportsFiles"`
	IsNotificationOnly bool               `json:"isNotificationOnly"`
	MessagingEndpoint  *MessagingEndpoint `json:"messagingEndpoint,omitempty"`
	CommandLists       []CommandList      `json:"commandLists,omitempty"`
}

type MessagingEndpoint struct {
	URL string `json:"url"`
}

type CommandList struct {
	Scopes   []string  `json:"scopes"`
	Commands []Command `json:"commands"`
}

type Command struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type WebApplicationInfo struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest as indented JSON.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return fmt.Errorf("cannot marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the fields Teams requires before a package uploads.
func (m *Manifest) Validate() error {
	var missing []string
	checks := []struct {
		name string
		ok   bool
	}{
		{"$schema", m.Schema != ""},
		{"manifestVersion", m.ManifestVersion != ""},
		{"version", m.Version != ""},
		{"id", m.ID != ""},
		{"packageName", m.PackageName != ""},
		{"developer", m.Developer.Name != ""},
		{"icons", m.Icons.Color != "" && m.Icons.Outline != ""},
		{"name", m.Name.Short != ""},
		{"description", m.Description.Short != ""},
		{"accentColor", m.AccentColor != ""},
		{"bots", len(m.Bots) > 0},
	}
	for _, c := range checks {
		if !c.ok {
			missing = append(missing, c.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("manifest missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SetEndpoint points the manifest at a deployed base URL: valid domains,
// the bot messaging endpoint, and the web application resource.
func (m *Manifest) SetEndpoint(baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	domain := strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://")

	m.ValidDomains = []string{domain}
	if len(m.Bots) > 0 {
		m.Bots[0].MessagingEndpoint = &MessagingEndpoint{URL: baseURL + "/api/teams/webhook"}
	}
	if m.WebApplicationInfo != nil {
		m.WebApplicationInfo.Resource = fmt.Sprintf("api://%s/%s", domain, m.ID)
	}
}

// DefaultManifest scaffolds a manifest for a new bot registration.
func DefaultManifest(appID string) *Manifest {
	return &Manifest{
		Schema:          "https://developer.microsoft.com/en-us/json-schemas/teams/v1.16/MicrosoftTeams.schema.json",
		ManifestVersion: "1.16",
		Version:         "1.0.0",
		ID:              appID,
		PackageName:     "com.teamsbot.weatherbot",
		Developer: Developer{
			Name:          "Teams Weather Bot",
			WebsiteURL:    "https://example.com",
			PrivacyURL:    "https://example.com/privacy",
			TermsOfUseURL: "https://example.com/terms",
		},
		Icons: Icons{
			Color:   "color_icon.png",
			Outline: "outline_icon.png",
		},
		Name: AppName{
			Short: "Weather Bot",
			Full:  "Teams Weather Bot",
		},
		Description: AppDescription{
			Short: "Weather, time, and traffic at a glance",
			Full:  "Ask about weather, local time, or traffic in any city and get an Adaptive Card back.",
		},
		AccentColor: "#4285F4",
		Bots: []Bot{{
			BotID:  appID,
			Scopes: []string{"personal", "team", "groupchat"},
			CommandLists: []CommandList{{
				Scopes: []string{"personal", "team", "groupchat"},
				Commands: []Command{
					{Title: "weather", Description: "Get the weather for a city"},
					{Title: "time", Description: "Get the current time for a city"},
					{Title: "traffic", Description: "Get traffic conditions for a city"},
					{Title: "help", Description: "Show available commands"},
				},
			}},
		}},
		Permissions: []string{"identity", "messageTeamMembers"},
	}
}

package gateway

import "strings"

// Identity is resolved once at startup and never mutated.
type Identity struct {
	Token      string
	Presence   Presence
	Properties Properties
}

// Presence describes the status shown to other users.
type Presence struct {
	Status     string
	CustomText string
	Emoji      *Emoji
}

// Emoji decorates the custom status. ID is empty for unicode emoji.
type Emoji struct {
	Name     string
	ID       string
	Animated bool
}

// Properties is the connection properties bundle sent with identify.
type Properties struct {
	OS      string `json:"$os"`
	Browser string `json:"$browser"`
	Device  string `json:"$device"`
}

// DefaultDevice is used for unknown device profiles.
const DefaultDevice = "pc"

var deviceProfiles = map[string]Properties{
	"pc":          {OS: "linux", Browser: "chrome", Device: "pc"},
	"chrome":      {OS: "linux", Browser: "chrome", Device: "pc"},
	"android":     {OS: "Android", Browser: "Discord Android", Device: "android"},
	"ios":         {OS: "iOS", Browser: "Discord iOS", Device: "iphone"},
	"playstation": {OS: "PlayStation", Browser: "PlayStation", Device: "playstation"},
	"xbox":        {OS: "Xbox", Browser: "Xbox", Device: "xbox"},
	"browser":     {OS: "linux", Browser: "firefox", Device: "browser"},
}

// DeviceProperties returns the properties bundle for a device profile name,
// falling back to the pc profile.
func DeviceProperties(device string) Properties {
	if p, ok := deviceProfiles[strings.ToLower(strings.TrimSpace(device))]; ok {
		return p
	}
	return deviceProfiles[DefaultDevice]
}

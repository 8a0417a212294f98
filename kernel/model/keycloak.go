package model

import (
	"strings"
)

// Realm is the only realm this tool migrates.
const Realm = "youwol"

// KeyProviderType is the Keycloak component type of signing-key providers.
const KeyProviderType = "org.keycloak.keys.KeyProvider"

// KeyProvider is a Keycloak signing-key component.
type KeyProvider struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	ProviderId string `json:"providerId"`
	Algorithm  string `json:"algorithm"`
	Priority   int    `json:"priority"`
	Active     bool   `json:"active"`
	Enabled    bool   `json:"enabled"`
}

// KeySpec describes a key provider created during rotation.
type KeySpec struct {
	Name       string
	ProviderId string
	Algorithm  string
	Priority   int
	Config     map[string]string
}

// NewKeySpecs are the providers inserted by every rotation, in creation order.
var NewKeySpecs = []KeySpec{
	{
		Name:       "rsa-generated",
		ProviderId: "rsa-generated",
		Algorithm:  "RS256",
		Priority:   100,
		Config:     map[string]string{"keySize": "2048"},
	},
	{
		Name:       "hmac-generated",
		ProviderId: "hmac-generated",
		Algorithm:  "HS256",
		Priority:   100,
	},
	{
		Name:       "aes-generated",
		ProviderId: "aes-generated",
		Algorithm:  "AES",
		Priority:   100,
	},
	{
		Name:       "fallback-ES256",
		ProviderId: "ecdsa-generated",
		Algorithm:  "ES256",
		Priority:   -100,
		Config:     map[string]string{"ecdsaEllipticCurveKey": "P-256"},
	},
}

// RetiredPriority is set on providers deactivated by a rotation.
const RetiredPriority = -200

type RotationMode string

const (
	RotationNone   RotationMode = ""
	RotationRotate RotationMode = "rotate"
	RotationReset  RotationMode = "reset"
)

// ParseRotationMode accepts an unset value, "rotate" or "reset".
func ParseRotationMode(s string) (RotationMode, error) {
	switch RotationMode(strings.TrimSpace(s)) {
	case RotationNone:
		return RotationNone, nil
	case RotationRotate:
		return RotationRotate, nil
	case RotationReset:
		return RotationReset, nil
	default:
		return "", NewConfigurationError(EnvKeycloakRotateKeys, "unrecognized key rotation mode '%s' (expected 'rotate' or 'reset')", s)
	}
}

// ClientCredential is pushed to an existing Keycloak client during CONFIGURING_CLIENTS.
type ClientCredential struct {
	ClientId     string
	Secret       string
	RedirectUris []string
}

// KnownClients are the client ids whose secrets are reconfigured after an import.
var KnownClients = []string{"admin-cli", "integration-tests", "youwol-platform", "webpm"}

// RedirectUrisClient is the only known client whose redirect URIs are overwritten.
const RedirectUrisClient = "webpm"

// KeycloakDirection selects the kc script prepared by the setup task.
type KeycloakDirection string

const (
	KeycloakImport KeycloakDirection = "import"
	KeycloakExport KeycloakDirection = "export"
)

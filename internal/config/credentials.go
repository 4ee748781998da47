package config

import "strings"

// Role names a pipeline stage a provider is selected for.
type Role string

const (
	RoleTranscription Role = "transcription"
	RoleResponse      Role = "response"
	RoleSpeech        Role = "speech"
)

// Roles returns every pipeline role in turn order.
func Roles() []Role { return []Role{RoleTranscription, RoleResponse, RoleSpeech} }

// Environment variables holding one API key per provider family.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvGroqKey       = "GROQ_API_KEY"
	EnvDeepgramKey   = "DEEPGRAM_API_KEY"
	EnvElevenLabsKey = "ELEVENLABS_API_KEY"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvGoogleKey     = "GOOGLE_API_KEY"
)

// credentialTable maps role -> provider -> environment variable. Providers
// missing from a role run without a credential.
var credentialTable = map[Role]map[string]string{
	RoleTranscription: {
		"openai":   EnvOpenAIKey,
		"groq":     EnvGroqKey,
		"deepgram": EnvDeepgramKey,
		"google":   EnvGoogleKey,
	},
	RoleResponse: {
		"openai": EnvOpenAIKey,
		"groq":   EnvGroqKey,
		"gemini": EnvGeminiKey,
		"agent":  EnvGroqKey,
	},
	RoleSpeech: {
		"openai":     EnvOpenAIKey,
		"deepgram":   EnvDeepgramKey,
		"elevenlabs": EnvElevenLabsKey,
	},
}

// CredentialEnv returns the environment variable that supplies the
// credential for provider in role, or "" when it needs none.
func CredentialEnv(role Role, provider string) string {
	return credentialTable[role][normalize(provider)]
}

// Credentials resolves the API key for a (role, provider) pair.
// The zero value resolves nothing.
type Credentials struct {
	byRole map[Role]map[string]string
}

// NewCredentials builds the role -> provider -> credential map from the
// credential block of the configuration.
func NewCredentials(c CredentialsConfig) Credentials {
	byEnv := map[string]string{
		EnvOpenAIKey:     c.OpenAI,
		EnvGroqKey:       c.Groq,
		EnvDeepgramKey:   c.Deepgram,
		EnvElevenLabsKey: c.ElevenLabs,
		EnvGeminiKey:     c.Gemini,
		EnvGoogleKey:     c.Google,
	}
	byRole := make(map[Role]map[string]string, len(credentialTable))
	for role, providers := range credentialTable {
		m := make(map[string]string, len(providers))
		for name, env := range providers {
			m[name] = byEnv[env]
		}
		byRole[role] = m
	}
	return Credentials{byRole: byRole}
}

// Resolve returns the credential configured for provider in role. ok is false
// for unknown roles and for providers that take no credential; a known pair
// whose key is unset resolves to ("", true).
func (c Credentials) Resolve(role Role, provider string) (string, bool) {
	key, ok := c.byRole[role][normalize(provider)]
	return key, ok
}

// Resolver returns the resolver for cfg's credential block.
func (cfg *Config) Resolver() Credentials {
	return NewCredentials(cfg.Credentials)
}

// Entry returns the provider selection for role.
func (cfg *Config) Entry(role Role) ProviderEntry {
	switch role {
	case RoleTranscription:
		return cfg.Providers.Transcription
	case RoleResponse:
		return cfg.Providers.Response
	case RoleSpeech:
		return cfg.Providers.Speech
	}
	return ProviderEntry{}
}

// APIKey returns the credential used for role's selected provider. An explicit
// api_key on the provider entry wins over the credential block.
func (cfg *Config) APIKey(role Role) string {
	e := cfg.Entry(role)
	if e.APIKey != "" {
		return e.APIKey
	}
	key, _ := cfg.Resolver().Resolve(role, e.Name)
	return key
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

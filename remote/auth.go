package remote

import (
	"encoding/json"
	"net/url"
	"os"
	"strings"
)

// Credentials is one entry of an auth file, a JSON object mapping a URL
// prefix (or S3 hostname, as a fallback) to a credential record. Fields
// are a superset across every backend; a given backend reads only the
// ones it understands. This matches the original implementation's
// untyped dict, made concrete since Go has no dynamic attribute access.
type Credentials struct {
	Username        string `json:"username,omitempty"`
	Password        string `json:"password,omitempty"`
	AuthType        string `json:"auth_type,omitempty"`
	GrantType       string `json:"grant_type,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
	TokenURL        string `json:"token_url,omitempty"`
	Host            string `json:"host,omitempty"`
	Region          string `json:"region,omitempty"`
	AccessKey       string `json:"access_key,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}

// CredentialFile is a parsed auth file: a set of URL-prefix keyed
// Credentials, following spec.md §6's "auth_file (path to JSON
// credentials)".
type CredentialFile map[string]Credentials

// LoadCredentialFile reads and parses path as a JSON object of
// prefix → credential record. An empty path is not an error; it
// yields an empty CredentialFile, matching archives with no auth_file
// configured.
func LoadCredentialFile(path string) (CredentialFile, error) {
	if path == "" {
		return CredentialFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file CredentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file, nil
}

// Resolve looks up credentials for rawURL: first by longest matching
// URL-prefix key (muninn/remote.py's get_credentials iterates the
// dict and returns on the first prefix match in file order; since Go
// maps carry no order, the longest prefix is used instead as a
// deterministic, strictly-more-specific-wins rule), then, for any
// non-s3 scheme, by exact hostname.
func (f CredentialFile) Resolve(rawURL string) (Credentials, bool) {
	bestKey := ""
	for key := range f {
		if strings.HasPrefix(rawURL, key) && len(key) > len(bestKey) {
			bestKey = key
		}
	}
	if bestKey != "" {
		return f[bestKey], true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "s3" {
		return Credentials{}, false
	}
	if creds, ok := f[parsed.Hostname()]; ok {
		return creds, true
	}
	return Credentials{}, false
}

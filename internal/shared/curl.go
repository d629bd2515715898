// Utilities for extracting Apple Music tokens from a copied cURL command.
//
// The Music User Token is not obtainable through a plain OAuth flow from a
// CLI; the practical route is copying any authenticated request from the
// web player's network inspector ("Copy as cURL") and pulling the
// Authorization and Media-User-Token headers out of it.
package shared

import (
	"fmt"
	"regexp"
	"strings"
)

// CurlHeaders represents headers parsed from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and extracts headers.
func ParseCurlFile(filepath string) (*CurlHeaders, error) {
	content, err := VerifyAndReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var cookie string

	headerRegex := regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	matches := headerRegex.FindAllStringSubmatch(curlCmd, -1)

	for _, match := range matches {
		headerLine := match[1]
		if headerLine == "" {
			headerLine = match[2]
		}

		parts := strings.SplitN(headerLine, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if strings.EqualFold(key, "cookie") {
			cookie = value
		} else {
			headers[key] = value
		}
	}

	cookieRegex := regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
	if cookieMatches := cookieRegex.FindStringSubmatch(curlCmd); len(cookieMatches) > 1 {
		if cookieMatches[1] != "" {
			cookie = cookieMatches[1]
		} else {
			cookie = cookieMatches[2]
		}
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("no headers found in curl command")
	}

	return &CurlHeaders{
		Headers: headers,
		Cookie:  cookie,
	}, nil
}

// AppleMusicTokens extracts the developer token (Authorization header,
// stripped of the Bearer prefix) and the Media-User-Token from the parsed
// headers. Either value may be empty when absent.
func (c *CurlHeaders) AppleMusicTokens() (developerToken, userToken string) {
	for key, value := range c.Headers {
		switch {
		case strings.EqualFold(key, "authorization"):
			developerToken = strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
		case strings.EqualFold(key, "media-user-token"), strings.EqualFold(key, "music-user-token"):
			userToken = strings.TrimSpace(value)
		}
	}
	return developerToken, userToken
}

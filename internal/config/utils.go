package config

import (
	"fmt"
	"net/url"
	"strings"
)

func validateURL(urlStr, fieldName string) error {
	if urlStr == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s must have http or https scheme", fieldName)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	return nil
}

func validateAuthStyle(style, fieldName string) (string, error) {
	switch style {
	case "":
		return AuthStyleHeader, nil
	case AuthStyleHeader, AuthStyleParams:
		return style, nil
	default:
		return "", fmt.Errorf("invalid %s: %s, options are 'header' or 'params'", fieldName, style)
	}
}

// IsLocalPath reports whether p is a same-origin path safe to redirect to.
func IsLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

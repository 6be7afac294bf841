package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the launcher that hands a URL to the desktop's default browser on goos.
func browserCommand(goos, url string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("no browser launcher for %s", goos)
	}
}

// openConsentPage shows the Spotify consent page for `spotify auth`.
//
// The launcher is started, not awaited; the callback server is what learns whether the user approved.
func openConsentPage(authURL string) error {
	name, args, err := browserCommand(runtime.GOOS, authURL)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

//go:build !windows

package tray

import "log"

func showAbout(title, message string) {
	log.Printf("%s\n%s", title, message)
}

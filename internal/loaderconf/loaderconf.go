// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package loaderconf renders the first-stage loader's loader.conf: a
// key-value text file with one space-separated option per line. A key
// whose Config field is left at its zero value is omitted, matching the
// "value null omits the key" convention.
package loaderconf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SecureBootEnroll is the value of the secure-boot-enroll option.
type SecureBootEnroll string

// Recognised secure-boot-enroll values.
const (
	SecureBootEnrollOff    SecureBootEnroll = "off"
	SecureBootEnrollManual SecureBootEnroll = "manual"
	SecureBootEnrollIfSafe SecureBootEnroll = "if-safe"
	SecureBootEnrollForce  SecureBootEnroll = "force"
)

// Config is the set of options loader.conf recognises. A zero-valued field
// is omitted from the rendered file rather than written as an empty or
// default value.
type Config struct {
	// Timeout is the boot menu timeout in seconds. Zero or negative means unset.
	Timeout int
	// ConsoleMode is "auto", "max", "keep", or a literal number as a string.
	ConsoleMode string
	// Editor enables or disables the boot entry editor; nil means unset.
	Editor *bool
	// Default is the glob selecting the default boot entry.
	Default string
	// SecureBootEnroll controls automatic key enrolment from /loader/keys/auto.
	SecureBootEnroll SecureBootEnroll
	// Beep enables or disables the boot beep; nil means unset.
	Beep *bool
}

// Render produces the loader.conf text for cfg.
func Render(cfg Config) string {
	var b strings.Builder

	if cfg.Timeout > 0 {
		fmt.Fprintf(&b, "timeout %d\n", cfg.Timeout)
	}

	if cfg.ConsoleMode != "" {
		fmt.Fprintf(&b, "console-mode %s\n", cfg.ConsoleMode)
	}

	if cfg.Editor != nil {
		fmt.Fprintf(&b, "editor %s\n", yesNo(*cfg.Editor))
	}

	if cfg.Default != "" {
		fmt.Fprintf(&b, "default %s\n", cfg.Default)
	}

	if cfg.SecureBootEnroll != "" {
		fmt.Fprintf(&b, "secure-boot-enroll %s\n", cfg.SecureBootEnroll)
	}

	if cfg.Beep != nil {
		fmt.Fprintf(&b, "beep %s\n", yesNo(*cfg.Beep))
	}

	return b.String()
}

// Write renders cfg and writes it to path.
func Write(path string, cfg Config) error {
	return os.WriteFile(path, []byte(Render(cfg)), 0o644)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

// WriteFromTemplate copies the loader.conf template at srcPath to dstPath,
// appending a trailing secure-boot-enroll override line when enroll is
// non-empty: systemd-boot's loader.conf parser takes the last occurrence of
// a repeated key, so this forces auto-enrolment without having to parse
// and re-render a template this system did not generate.
func WriteFromTemplate(srcPath, dstPath string, enroll SecureBootEnroll) error {
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading loader.conf template %s: %w", srcPath, err)
	}

	if enroll != "" {
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content = append(content, '\n')
		}

		content = append(content, []byte(fmt.Sprintf("secure-boot-enroll %s\n", enroll))...)
	}

	return os.WriteFile(dstPath, content, 0o644)
}

// ParseConsoleMode validates a console-mode value against the recognised
// grammar: "auto", "max", "keep", or a non-negative integer.
func ParseConsoleMode(value string) (string, error) {
	switch value {
	case "auto", "max", "keep":
		return value, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid console-mode %q", value)
	}

	return value, nil
}

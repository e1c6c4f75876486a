package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// FindADB locates the adb executable. preferred may be the executable itself
// or a directory containing it.
func FindADB(preferred string) (string, error) {
	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}

	if preferred != "" {
		candidates := []string{preferred, filepath.Join(preferred, name), filepath.Join(preferred, "platform-tools", name)}
		for _, path := range candidates {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	commonPaths := []string{
		`C:\Program Files\Netease\MuMuPlayer-12.0\shell\adb.exe`,
		`C:\Program Files (x86)\Netease\MuMuPlayer-12.0\shell\adb.exe`,
		`C:\Android\sdk\platform-tools\adb.exe`,
		`${LOCALAPPDATA}\Android\Sdk\platform-tools\adb.exe`,
	}
	if runtime.GOOS != "windows" {
		commonPaths = []string{
			"/usr/bin/adb",
			"/usr/local/bin/adb",
			"${HOME}/Android/Sdk/platform-tools/adb",
		}
	}

	for _, path := range commonPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found, please specify ADBPath in config")
}

// Devices lists serials in the "device" state
func Devices(ctx context.Context, adbPath string, run Runner) ([]string, error) {
	if run == nil {
		run = execRunner
	}

	output, err := run(ctx, adbPath, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices failed: %w", err)
	}
	return parseDevices(string(output)), nil
}

func parseDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			devices = append(devices, fields[0])
		}
	}
	return devices
}

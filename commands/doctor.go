package commands

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type DoctorInfo struct {
	Version     string `json:"version"`
	OS          string `json:"os"`
	OSVersion   string `json:"os_version"`
	AndroidHome string `json:"android_home"`
	ADBPath     string `json:"adb_path"`
	ADBVersion  string `json:"adb_version,omitempty"`
	ConfigPath  string `json:"config_path,omitempty"`
}

func getAndroidSdkPath() string {
	sdkPath := os.Getenv("ANDROID_HOME")
	if sdkPath != "" {
		if _, err := os.Stat(sdkPath); err == nil {
			return sdkPath
		}
	}

	// try default Android SDK location on macOS
	homeDir := os.Getenv("HOME")
	if homeDir != "" {
		defaultPath := filepath.Join(homeDir, "Library", "Android", "sdk")
		if _, err := os.Stat(defaultPath); err == nil {
			return defaultPath
		}
	}

	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			defaultPath := filepath.Join(localAppData, "Android", "Sdk")
			if _, err := os.Stat(defaultPath); err == nil {
				return defaultPath
			}
		}
	}

	return ""
}

// ResolveAdbPath returns the configured adb binary when it is an explicit
// path, otherwise the one from the Android SDK or PATH. It falls back to the
// configured value so errors name what was tried.
func ResolveAdbPath(configured string) string {
	if configured != "" && configured != "adb" {
		return configured
	}

	sdkPath := getAndroidSdkPath()
	if sdkPath != "" {
		adbPath := filepath.Join(sdkPath, "platform-tools", "adb")
		if runtime.GOOS == "windows" {
			adbPath += ".exe"
		}

		if _, err := os.Stat(adbPath); err == nil {
			return adbPath
		}
	}

	// check if adb is in PATH
	adbPath, err := exec.LookPath("adb")
	if err == nil {
		return adbPath
	}

	if configured == "" {
		return "adb"
	}
	return configured
}

func getAdbVersion(adbPath string) string {
	if adbPath == "" {
		return ""
	}

	cmd := exec.Command(adbPath, "version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ""
	}

	return parseAdbVersion(string(output))
}

func parseAdbVersion(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Android Debug Bridge version") {
			return strings.TrimSpace(line)
		}
	}
	return strings.TrimSpace(output)
}

func getOSVersion() string {
	switch runtime.GOOS {
	case "darwin":
		output, err := exec.Command("sw_vers", "-productVersion").CombinedOutput()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(output))
	case "linux":
		data, err := os.ReadFile("/etc/os-release")
		if err != nil {
			return ""
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "PRETTY_NAME=") {
				return strings.Trim(strings.TrimPrefix(line, "PRETTY_NAME="), "\"")
			}
		}
		return ""
	default:
		return ""
	}
}

// DoctorCommand reports whether adb can be found and which one is used
func DoctorCommand(version, configuredAdb, configPath string) *CommandResponse {
	info := DoctorInfo{
		Version:     version,
		OS:          runtime.GOOS,
		OSVersion:   getOSVersion(),
		AndroidHome: os.Getenv("ANDROID_HOME"),
		ADBPath:     ResolveAdbPath(configuredAdb),
		ConfigPath:  configPath,
	}

	info.ADBVersion = getAdbVersion(info.ADBPath)

	return NewSuccessResponse(info)
}

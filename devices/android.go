package devices

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/mobile-next/mobilesync/types"
	"github.com/mobile-next/mobilesync/utils"
)

// CommandRunner executes a process and returns its combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var (
	overrideSizeRe       = regexp.MustCompile(`Override size:\s*(\d+)x(\d+)`)
	physicalSizeRe       = regexp.MustCompile(`Physical size:\s*(\d+)x(\d+)`)
	surfaceOrientationRe = regexp.MustCompile(`SurfaceOrientation:\s*(\d)`)
	currentRotationRe    = regexp.MustCompile(`mCurrentRotation=ROTATION_(\d+)`)
)

// output fragments adb prints on failure while still exiting 0
var failureMarkers = []string{"error", "failed", "not found", "exception"}

var keyMap = map[string]string{
	"home":        "3",
	"back":        "4",
	"dpad_up":     "19",
	"dpad_down":   "20",
	"dpad_left":   "21",
	"dpad_right":  "22",
	"volume_up":   "24",
	"volume_down": "25",
	"power":       "26",
	"tab":         "61",
	"space":       "62",
	"enter":       "66",
	"delete":      "67",
	"menu":        "82",
	"escape":      "111",
	"app_switch":  "187",
}

// AndroidDevice implements the ControllableDevice interface for Android devices
type AndroidDevice struct {
	id      string
	name    string
	state   string
	adbPath string
	run     CommandRunner
}

func (d *AndroidDevice) ID() string {
	return d.id
}

func (d *AndroidDevice) Name() string {
	return d.name
}

func (d *AndroidDevice) Platform() string {
	return "android"
}

func (d *AndroidDevice) DeviceType() string {
	if strings.HasPrefix(d.id, "emulator-") {
		return "emulator"
	}
	return "real"
}

func (d *AndroidDevice) Info() DeviceInfo {
	return DeviceInfo{
		ID:       d.id,
		Name:     d.name,
		Platform: d.Platform(),
		Type:     d.DeviceType(),
		State:    d.state,
	}
}

func (d *AndroidDevice) runAdbCommand(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := append([]string{"-s", d.id}, args...)
	utils.Verbose("adb %s", strings.Join(cmdArgs, " "))

	output, err := d.run(ctx, d.adbPath, cmdArgs...)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		return output, fmt.Errorf("%w: adb %s", types.ErrCommandTimeout, strings.Join(args, " "))
	}
	if err != nil {
		return output, fmt.Errorf("%w: adb %s: %v\nOutput: %s", types.ErrCommandFailure, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}

	return output, nil
}

// runInputCommand runs `adb shell input ...`, which exits 0 even when the
// injection failed, so its output is scanned for failure markers as well
func (d *AndroidDevice) runInputCommand(ctx context.Context, args ...string) ([]byte, error) {
	output, err := d.runAdbCommand(ctx, append([]string{"shell", "input"}, args...)...)
	if err != nil {
		return output, err
	}
	if marker := findFailureMarker(string(output)); marker != "" {
		return output, fmt.Errorf("%w: input %s reported %q\nOutput: %s", types.ErrCommandFailure, strings.Join(args, " "), marker, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func findFailureMarker(output string) string {
	lower := strings.ToLower(output)
	for _, marker := range failureMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}

// Tap simulates a tap at (x, y) on the Android device.
func (d *AndroidDevice) Tap(ctx context.Context, x, y int) error {
	_, err := d.runInputCommand(ctx, "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// LongPress is a zero-length swipe held for durationMs
func (d *AndroidDevice) LongPress(ctx context.Context, x, y, durationMs int) error {
	sx, sy := strconv.Itoa(x), strconv.Itoa(y)
	_, err := d.runInputCommand(ctx, "swipe", sx, sy, sx, sy, strconv.Itoa(durationMs))
	return err
}

func (d *AndroidDevice) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	_, err := d.runInputCommand(ctx, "swipe",
		strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2), strconv.Itoa(durationMs))
	return err
}

// PressButton accepts a named key from keyMap or a raw numeric keycode
func (d *AndroidDevice) PressButton(ctx context.Context, key string) error {
	keycode, err := resolveKeycode(key)
	if err != nil {
		return err
	}

	output, err := d.runInputCommand(ctx, "keyevent", keycode)
	if err != nil {
		return fmt.Errorf("failed to press %s button: %w\nOutput: %s", key, err, string(output))
	}

	return nil
}

func resolveKeycode(key string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if keycode, ok := keyMap[normalized]; ok {
		return keycode, nil
	}
	if _, err := strconv.Atoi(normalized); err == nil {
		return normalized, nil
	}
	return "", fmt.Errorf("%w: unsupported button key: %s", types.ErrCommandFailure, key)
}

func (d *AndroidDevice) SendKeys(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	_, err := d.runInputCommand(ctx, "text", escapeShellText(text))
	return err
}

// escapeShellText backslash-escapes characters the device shell would
// otherwise interpret
func escapeShellText(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune(" '\"\\;|&()<>$*`?!#~[]{}", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Perform executes an action and returns the command output
func (d *AndroidDevice) Perform(ctx context.Context, action Action) (string, error) {
	var err error
	switch action.Kind {
	case ActionTap:
		err = d.Tap(ctx, action.X, action.Y)
	case ActionLongPress:
		err = d.LongPress(ctx, action.X, action.Y, action.DurationMs)
	case ActionSwipe:
		err = d.Swipe(ctx, action.X, action.Y, action.X2, action.Y2, action.DurationMs)
	case ActionKey:
		err = d.PressButton(ctx, action.Key)
	case ActionText:
		err = d.SendKeys(ctx, action.Text)
	default:
		return "", fmt.Errorf("unsupported action kind: %s", action.Kind)
	}

	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s on %s", action, d.id), nil
}

// ScreenSize returns the natural (portrait) size reported by `wm size`
func (d *AndroidDevice) ScreenSize(ctx context.Context) (types.Size, error) {
	output, err := d.runAdbCommand(ctx, "shell", "wm", "size")
	if err != nil {
		return types.Size{}, fmt.Errorf("%w: %v", types.ErrGeometryUnknown, err)
	}
	return parseWmSize(string(output))
}

// parseWmSize prefers the override size, which is what input coordinates use
func parseWmSize(output string) (types.Size, error) {
	match := overrideSizeRe.FindStringSubmatch(output)
	if match == nil {
		match = physicalSizeRe.FindStringSubmatch(output)
	}
	if match == nil {
		return types.Size{}, fmt.Errorf("%w: unexpected wm size output: %s", types.ErrGeometryUnknown, strings.TrimSpace(output))
	}

	width, _ := strconv.Atoi(match[1])
	height, _ := strconv.Atoi(match[2])
	size := types.Size{Width: width, Height: height}
	if !size.Valid() {
		return types.Size{}, fmt.Errorf("%w: invalid size %dx%d", types.ErrGeometryUnknown, width, height)
	}
	return size, nil
}

func (d *AndroidDevice) Orientation(ctx context.Context) (types.Orientation, error) {
	output, err := d.runAdbCommand(ctx, "shell", "dumpsys", "input")
	if err == nil {
		if o, ok := parseSurfaceOrientation(string(output)); ok {
			return o, nil
		}
	}

	output, err = d.runAdbCommand(ctx, "shell", "dumpsys", "window", "displays")
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrGeometryUnknown, err)
	}
	if o, ok := parseCurrentRotation(string(output)); ok {
		return o, nil
	}

	return "", fmt.Errorf("%w: orientation not found in dumpsys output", types.ErrGeometryUnknown)
}

// parseSurfaceOrientation reads the rotation quadrant (0-3) from dumpsys input
func parseSurfaceOrientation(output string) (types.Orientation, bool) {
	match := surfaceOrientationRe.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	return rotationToOrientation(match[1] == "1" || match[1] == "3"), true
}

// parseCurrentRotation reads ROTATION_<degrees> from dumpsys window displays
func parseCurrentRotation(output string) (types.Orientation, bool) {
	match := currentRotationRe.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	return rotationToOrientation(match[1] == "90" || match[1] == "270"), true
}

func rotationToOrientation(rotated bool) types.Orientation {
	if rotated {
		return types.Landscape
	}
	return types.Portrait
}

// Geometry combines size and orientation into the effective surface: in
// landscape the natural width and height are swapped.
func (d *AndroidDevice) Geometry(ctx context.Context) (types.Geometry, error) {
	size, err := d.ScreenSize(ctx)
	if err != nil {
		return types.Geometry{}, err
	}

	orientation, err := d.Orientation(ctx)
	if err != nil {
		return types.Geometry{}, err
	}

	return effectiveGeometry(size, orientation), nil
}

func effectiveGeometry(size types.Size, orientation types.Orientation) types.Geometry {
	landscapeShaped := size.Width > size.Height
	if (orientation == types.Landscape) != landscapeShaped && size.Width != size.Height {
		size.Width, size.Height = size.Height, size.Width
	}
	return types.Geometry{Size: size, Orientation: orientation}
}

func parseAdbDevicesOutput(output string) []DeviceInfo {
	var devices []DeviceInfo

	lines := strings.Split(output, "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		if parts[1] == "device" {
			devices = append(devices, DeviceInfo{
				ID:       parts[0],
				Platform: "android",
				State:    "online",
			})
		}
	}

	return devices
}

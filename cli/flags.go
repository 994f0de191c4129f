package cli

var (
	verbose    bool
	configPath string

	// all commands
	deviceId string

	// for io longpress and swipe
	durationMs int

	// for sync run
	primaryId    string
	secondaryIds []string
	inputPath    string
)

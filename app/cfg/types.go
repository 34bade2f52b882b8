package cfg

type Cfg struct {
	// Podcast configuration
	FeedConfig    string
	FeedURL       string
	DestDir       string
	RetentionDays int

	// Storage configuration
	WatermarkPath string
	DBPath        string

	// Application configuration
	Port              string
	BaseUrl           string
	SchedulerInterval int
	MaxRetries        int
	APIAccessKey      string
	Once              bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// Package config loads the alarm's configuration file.
//
// The file is JSON or YAML; keys are the camelCase names below. It is read
// once at startup and never reloaded.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"

	"clearskyalarm/internal/watch"
	"clearskyalarm/pkg/clearsky"
)

// EnvSMSAPIKey overrides smsAPIKey when set, so the key can live outside
// the config file.
const EnvSMSAPIKey = "CLEARSKY_SMS_API_KEY"

const (
	defaultSMSURL        = "https://textbelt.com/text"
	defaultSettleSeconds = 5
	defaultBoxColor      = "#ffff00"
	defaultDetectedTag   = "detected_"
	thumbnailsMarker     = "thumbnails"
)

// regionEndpoints maps smsRegion to the provider's regional endpoint. An
// explicit smsURL always wins.
var regionEndpoints = map[string]string{
	"us":     "https://textbelt.com/text",
	"canada": "https://textbelt.com/canada",
	"intl":   "https://textbelt.com/intl",
}

// File is the on-disk configuration.
type File struct {
	Debug bool `json:"debug"`

	StarCountThreshold int     `json:"starCountThreshold"`
	DistanceThreshold  float64 `json:"distanceThreshold"`
	DetectionThreshold float64 `json:"detectionThreshold"`
	Clustering         string  `json:"clustering,omitempty"`

	TemplatePath      string `json:"templatePath"`
	ImagePath         string `json:"imagePath"`
	DetectedPath      string `json:"detectedPath"`
	DetectedTag       string `json:"detectedTag"`
	WriteDetectedFile bool   `json:"writeDetectedFile"`
	BoxColor          string `json:"boxColor,omitempty"`

	ImageTag      string `json:"imageTag"`
	ImageType     string `json:"imageType"`
	SettleSeconds *int   `json:"settleSeconds,omitempty"`

	NotifySMS   bool   `json:"notifySMS"`
	NotifyDelta int    `json:"notifyDelta"`
	SMSAPIKey   string `json:"smsAPIKey"`
	SMSPhone    string `json:"smsPhone"`
	SMSRegion   string `json:"smsRegion,omitempty"`
	SMSMsg      string `json:"smsMsg"`
	SMSURL      string `json:"smsURL,omitempty"`

	// StatusAddr is the listen address of the status server. Empty disables it.
	StatusAddr string `json:"statusAddr,omitempty"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data, applies defaults and the environment override, and
// validates the result.
func Parse(data []byte) (*File, error) {
	var cfg File
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if key := os.Getenv(EnvSMSAPIKey); key != "" {
		cfg.SMSAPIKey = key
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *File) applyDefaults() {
	if c.DetectedTag == "" {
		c.DetectedTag = defaultDetectedTag
	}
	if c.BoxColor == "" {
		c.BoxColor = defaultBoxColor
	}
	if c.SettleSeconds == nil {
		s := defaultSettleSeconds
		c.SettleSeconds = &s
	}
	if c.Clustering == "" {
		c.Clustering = string(clearsky.ClusteringRunning)
	}
	if c.SMSURL == "" {
		c.SMSURL = defaultSMSURL
		if u, ok := regionEndpoints[strings.ToLower(c.SMSRegion)]; ok {
			c.SMSURL = u
		}
	}
}

// Validate reports every problem with the configuration at once.
func (c *File) Validate() error {
	var errs []error
	if c.TemplatePath == "" {
		errs = append(errs, errors.New("templatePath is required"))
	}
	if c.ImagePath == "" {
		errs = append(errs, errors.New("imagePath is required"))
	}
	if c.WriteDetectedFile && c.DetectedPath == "" {
		errs = append(errs, errors.New("detectedPath is required when writeDetectedFile is set"))
	}
	if c.StarCountThreshold < 0 {
		errs = append(errs, fmt.Errorf("starCountThreshold must be >= 0, got %d", c.StarCountThreshold))
	}
	if c.DistanceThreshold < 0 {
		errs = append(errs, fmt.Errorf("distanceThreshold must be >= 0, got %g", c.DistanceThreshold))
	}
	// TM_CCOEFF_NORMED scores span [-1, 1].
	if c.DetectionThreshold < -1 || c.DetectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("detectionThreshold must be in [-1, 1], got %g", c.DetectionThreshold))
	}
	if c.NotifyDelta < 0 {
		errs = append(errs, fmt.Errorf("notifyDelta must be >= 0, got %d", c.NotifyDelta))
	}
	if c.SettleSeconds != nil && *c.SettleSeconds < 0 {
		errs = append(errs, fmt.Errorf("settleSeconds must be >= 0, got %d", *c.SettleSeconds))
	}
	if c.NotifySMS {
		if c.SMSPhone == "" {
			errs = append(errs, errors.New("smsPhone is required when notifySMS is set"))
		}
		if c.SMSAPIKey == "" {
			errs = append(errs, fmt.Errorf("smsAPIKey (or %s) is required when notifySMS is set", EnvSMSAPIKey))
		}
	}
	if _, err := clearsky.ParseBoxColor(c.BoxColor); err != nil {
		errs = append(errs, err)
	}
	switch clearsky.ClusteringMode(c.Clustering) {
	case "", clearsky.ClusteringRunning, clearsky.ClusteringNMS:
	default:
		errs = append(errs, fmt.Errorf("clustering must be %q or %q, got %q", clearsky.ClusteringRunning, clearsky.ClusteringNMS, c.Clustering))
	}
	return errors.Join(errs...)
}

// Detection returns the detection configuration for the pipeline.
func (c *File) Detection() clearsky.Config {
	return clearsky.Config{
		StarCountThreshold: c.StarCountThreshold,
		DistanceThreshold:  c.DistanceThreshold,
		DetectionThreshold: c.DetectionThreshold,
		NotifyDelta:        c.NotifyInterval(),
		Clustering:         clearsky.ClusteringMode(c.Clustering),
		Recipient:          c.SMSPhone,
		Message:            c.SMSMsg,
		APIKey:             c.SMSAPIKey,
	}
}

// NotifyInterval is notifyDelta as a duration.
func (c *File) NotifyInterval() time.Duration {
	return time.Duration(c.NotifyDelta) * time.Second
}

// SettleDelay is how long a new capture is left alone before it is read.
func (c *File) SettleDelay() time.Duration {
	if c.SettleSeconds == nil {
		return defaultSettleSeconds * time.Second
	}
	return time.Duration(*c.SettleSeconds) * time.Second
}

// CaptureFilter selects the captures the alarm should process: paths
// carrying imageTag and imageType that are neither one of our own annotated
// outputs nor a thumbnail.
func (c *File) CaptureFilter() watch.Filter {
	return watch.Filter{
		Include: []string{c.ImageTag, c.ImageType},
		Exclude: []string{c.DetectedTag, thumbnailsMarker},
	}
}

// Redacted returns a copy safe to log.
func (c *File) Redacted() File {
	r := *c
	if r.SMSAPIKey != "" {
		r.SMSAPIKey = "REDACTED"
	}
	return r
}

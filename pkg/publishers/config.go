package publishers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Supported publisher types.
const (
	TypeSQS    = "sqs"
	TypeSNS    = "sns"
	TypePubSub = "gcp_pubsub"
	TypeHTTP   = "http"
)

const (
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
	httpMaxRetries            = 5
)

// Config is one sink entry of the publishers file. Exactly the block matching
// Type is used.
type Config struct {
	ID       string        `json:"id" yaml:"id" toml:"id"`
	Type     string        `json:"type" yaml:"type" toml:"type"`
	Enabled  *bool         `json:"enabled" yaml:"enabled" toml:"enabled"`
	Sections []string      `json:"sections" yaml:"sections" toml:"sections"`
	SQS      *SQSConfig    `json:"sqs" yaml:"sqs" toml:"sqs"`
	SNS      *SNSConfig    `json:"sns" yaml:"sns" toml:"sns"`
	PubSub   *PubSubConfig `json:"gcp_pubsub" yaml:"gcp_pubsub" toml:"gcp_pubsub"`
	HTTP     *HTTPConfig   `json:"http" yaml:"http" toml:"http"`
}

// AWSConfig holds the settings shared by AWS publishers. Endpoint overrides
// the service endpoint (e.g. LocalStack).
type AWSConfig struct {
	Region          string `json:"region" yaml:"region" toml:"region"`
	Endpoint        string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key" toml:"secret_access_key"`
}

// SQSConfig targets a queue. Queue URLs ending in .fifo get a message group
// per user and the event ID as deduplication key.
type SQSConfig struct {
	QueueURL  string `json:"uri" yaml:"uri" toml:"uri"`
	AWSConfig `json:",inline" yaml:",inline"`
}

// SNSConfig targets a topic. FIFO topics are detected from the ARN suffix.
type SNSConfig struct {
	TopicARN  string `json:"topic_arn" yaml:"topic_arn" toml:"topic_arn"`
	AWSConfig `json:",inline" yaml:",inline"`
}

// PubSubConfig targets a GCP Pub/Sub topic. Without a credentials file the
// client falls back to application default credentials. Ordered delivery uses
// the user as ordering key.
type PubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id" toml:"project_id"`
	Topic           string `json:"topic" yaml:"topic" toml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" toml:"credentials_file"`
	Ordered         bool   `json:"ordered" yaml:"ordered" toml:"ordered"`
}

// HTTPConfig targets a webhook. Retries apply to transport errors and 5xx.
type HTTPConfig struct {
	URL            string            `json:"url" yaml:"url" toml:"url"`
	Method         string            `json:"method" yaml:"method" toml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers" toml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	Retries        int               `json:"retries" yaml:"retries" toml:"retries"`
}

// IsEnabled reports the enabled flag, which defaults to true.
func (c Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *Config) normalize() {
	c.ID = strings.TrimSpace(c.ID)
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}

	sections := c.Sections[:0:0]
	for _, s := range c.Sections {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sections = append(sections, s)
		}
	}
	c.Sections = sections

	if c.SQS != nil {
		cp := *c.SQS
		cp.QueueURL = strings.TrimSpace(cp.QueueURL)
		cp.AWSConfig = cp.AWSConfig.normalized()
		c.SQS = &cp
	}
	if c.SNS != nil {
		cp := *c.SNS
		cp.TopicARN = strings.TrimSpace(cp.TopicARN)
		cp.AWSConfig = cp.AWSConfig.normalized()
		c.SNS = &cp
	}
	if c.PubSub != nil {
		cp := *c.PubSub
		cp.ProjectID = strings.TrimSpace(cp.ProjectID)
		cp.Topic = strings.TrimSpace(cp.Topic)
		cp.CredentialsFile = strings.TrimSpace(cp.CredentialsFile)
		c.PubSub = &cp
	}
	if c.HTTP != nil {
		cp := *c.HTTP
		cp.normalize()
		c.HTTP = &cp
	}
}

func (c AWSConfig) normalized() AWSConfig {
	c.Region = strings.TrimSpace(c.Region)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	c.AccessKeyID = strings.TrimSpace(c.AccessKeyID)
	c.SecretAccessKey = strings.TrimSpace(c.SecretAccessKey)
	return c
}

func (c *HTTPConfig) normalize() {
	c.URL = strings.TrimSpace(c.URL)
	c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
	if c.Method == "" {
		c.Method = httpDefaultMethod
	}
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			headers[k] = v
		}
	}
	c.Headers = nil
	if len(headers) > 0 {
		c.Headers = headers
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = httpDefaultTimeoutSeconds
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Retries > httpMaxRetries {
		c.Retries = httpMaxRetries
	}
}

func (c Config) validate() error {
	if c.ID == "" {
		return errors.New("id is required")
	}
	for _, s := range c.Sections {
		if !knownSections[s] {
			return fmt.Errorf("publisher %q: unknown dashboard section %q", c.ID, s)
		}
	}

	var err error
	switch c.Type {
	case "":
		err = errors.New("type is required")
	case TypeSQS:
		err = c.SQS.validate()
	case TypeSNS:
		err = c.SNS.validate()
	case TypePubSub:
		err = c.PubSub.validate()
	case TypeHTTP:
		err = c.HTTP.validate()
	default:
		err = fmt.Errorf("unsupported type %q", c.Type)
	}
	if err != nil {
		return fmt.Errorf("publisher %q: %w", c.ID, err)
	}
	return nil
}

func (c *SQSConfig) validate() error {
	switch {
	case c == nil:
		return errors.New("sqs block is required")
	case c.QueueURL == "":
		return errors.New("sqs.uri is required")
	case c.Region == "":
		return errors.New("sqs.region is required")
	}
	return nil
}

func (c *SNSConfig) validate() error {
	switch {
	case c == nil:
		return errors.New("sns block is required")
	case c.TopicARN == "":
		return errors.New("sns.topic_arn is required")
	case c.Region == "":
		return errors.New("sns.region is required")
	}
	return nil
}

func (c *PubSubConfig) validate() error {
	switch {
	case c == nil:
		return errors.New("gcp_pubsub block is required")
	case c.ProjectID == "" || c.Topic == "":
		return errors.New("gcp_pubsub.project_id and gcp_pubsub.topic are required")
	}
	return nil
}

func (c *HTTPConfig) validate() error {
	if c == nil {
		return errors.New("http block is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("http.url must be an absolute http(s) URL, got %q", c.URL)
	}
	return nil
}

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rahul/consolenano/internal/page"
)

func snap(service, title, url string, errs ...page.ErrorDescriptor) page.Snapshot {
	s := page.EmptySnapshot(url, title)
	s.Service = service
	s.Errors = append(s.Errors, errs...)
	return s
}

func TestNeedsAdaptation(t *testing.T) {
	const (
		bucketsURL = "https://s3.console.aws.amazon.com/s3/buckets?region=us-east-1"
		createURL  = "https://s3.console.aws.amazon.com/s3/bucket/create?region=us-east-1"
	)
	exists := page.ErrorDescriptor{Type: "error", Message: "Bucket name already exists"}

	tests := []struct {
		name       string
		prompt     string
		prev       *page.Snapshot
		cur        page.Snapshot
		want       bool
		wantReason string
	}{
		{
			name:       "no prior context",
			prompt:     "create bucket",
			cur:        snap("S3", "Buckets", bucketsURL),
			want:       true,
			wantReason: ReasonNoContext,
		},
		{
			name:       "service changed",
			prompt:     "create a bucket",
			prev:       ptr(snap("EC2", "Instances", "https://console.aws.amazon.com/ec2/home")),
			cur:        snap("S3", "Instances", "https://console.aws.amazon.com/ec2/home"),
			want:       true,
			wantReason: ReasonServiceChanged,
		},
		{
			name:       "url moved to another path",
			prompt:     "create a bucket",
			prev:       ptr(snap("S3", "Buckets", bucketsURL)),
			cur:        snap("S3", "Buckets", createURL),
			want:       true,
			wantReason: ReasonURLChanged,
		},
		{
			name:   "query string change only",
			prompt: "create a bucket",
			prev:   ptr(snap("S3", "Buckets", bucketsURL)),
			cur:    snap("S3", "Buckets", "https://s3.console.aws.amazon.com/s3/buckets?region=eu-west-1"),
		},
		{
			name:   "url extended below old path",
			prompt: "create a bucket",
			prev:   ptr(snap("S3", "Buckets", "https://s3.console.aws.amazon.com/s3/buckets")),
			cur:    snap("S3", "Buckets", "https://s3.console.aws.amazon.com/s3/buckets/logs?tab=objects"),
		},
		{
			name:       "expected progression",
			prompt:     "create an s3 bucket",
			prev:       ptr(snap("S3", "Buckets", bucketsURL)),
			cur:        snap("S3", "Create bucket", bucketsURL),
			want:       true,
			wantReason: ReasonProgression,
		},
		{
			name:   "progression without matching intent",
			prompt: "enable cloudtrail",
			prev:   ptr(snap("S3", "Buckets", bucketsURL)),
			cur:    snap("S3", "Create bucket", bucketsURL),
		},
		{
			name:   "minor title change",
			prompt: "create bucket",
			prev:   ptr(snap("S3", "Create bucket - Step 1", createURL)),
			cur:    snap("S3", "Create bucket - Step 2", createURL),
		},
		{
			name:   "unknown service title change",
			prompt: "create a distribution",
			prev:   ptr(snap("CloudFront", "Distributions", "https://console.aws.amazon.com/cloudfront/v4/home")),
			cur:    snap("CloudFront", "Create distribution", "https://console.aws.amazon.com/cloudfront/v4/home"),
		},
		{
			name:       "new error",
			prompt:     "create bucket",
			prev:       ptr(snap("S3", "Create bucket", createURL)),
			cur:        snap("S3", "Create bucket", createURL, exists),
			want:       true,
			wantReason: ReasonNewError,
		},
		{
			name:   "error already known",
			prompt: "create bucket",
			prev:   ptr(snap("S3", "Create bucket", createURL, exists)),
			cur:    snap("S3", "Create bucket", createURL, exists),
		},
		{
			name:   "warnings ignored",
			prompt: "create bucket",
			prev:   ptr(snap("S3", "Create bucket", createURL)),
			cur: snap("S3", "Create bucket", createURL,
				page.ErrorDescriptor{Type: "warning", Message: "Public access is on"},
				page.ErrorDescriptor{Type: "error", Message: "Warning: versioning disabled"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := NeedsAdaptation(tt.prompt, tt.prev, tt.cur)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestIAMProgression(t *testing.T) {
	assert.True(t, expectedProgression("IAM Dashboard", "Create role", "add an iam role for lambda"))
	assert.False(t, expectedProgression("IAM Dashboard", "Access analyzer", "add an iam role"))
}

func ptr[T any](v T) *T { return &v }

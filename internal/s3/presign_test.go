package s3

import (
	"context"
	"testing"
	"time"
)

func TestPresignRejectsBadTTL(t *testing.T) {
	svc := Service{Bucket: "attachments", MaxTTL: time.Hour}

	if _, err := svc.PresignGet(context.Background(), "k", "f.pdf", 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
	if _, err := svc.PresignGet(context.Background(), "k", "f.pdf", 2*time.Hour); err == nil {
		t.Fatal("ttl above MaxTTL accepted")
	}
	if _, err := svc.PresignPut(context.Background(), "k", -time.Minute); err == nil {
		t.Fatal("negative ttl accepted")
	}
}

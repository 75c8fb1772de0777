package gcs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/bobg/h5/testutil"
)

func TestRaw(t *testing.T) {
	testutil.Raw(context.Background(), t, newStore(testutil.NewObjects(), "raw/"))
}

func TestStore(t *testing.T) {
	testutil.ReadWrite(context.Background(), t, newStore(testutil.NewObjects(), "h5/"), testutil.Data(7, 50000))
}

const (
	credsVar = "H5_GCS_TESTING_CREDS"
	projVar  = "H5_GCS_TESTING_PROJECT"
)

func TestBucket(t *testing.T) {
	var (
		creds     = os.Getenv(credsVar)
		projectID = os.Getenv(projVar)
	)
	if creds == "" || projectID == "" {
		t.Skipf("to run %s, set %s to the name of a credentials file and %s to a project ID", t.Name(), credsVar, projVar)
	}

	var r [30]byte
	if _, err := rand.Read(r[:]); err != nil {
		t.Fatal(err)
	}
	bucketName := hex.EncodeToString(r[:])

	ctx := context.Background()

	client, err := storage.NewClient(ctx, option.WithCredentialsFile(creds))
	if err != nil {
		t.Fatal(err)
	}

	t.Logf("creating bucket %s in project %s", bucketName, projectID)

	bucket := client.Bucket(bucketName)
	if err := bucket.Create(ctx, projectID, nil); err != nil {
		t.Fatal(err)
	}
	defer bucket.Delete(ctx)

	testutil.Raw(ctx, t, New(bucket, "raw/"))
	testutil.ReadWrite(ctx, t, New(bucket, "h5/"), testutil.Data(7, 50000))
}

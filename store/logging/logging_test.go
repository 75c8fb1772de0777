package logging

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/bobg/h5/store/mem"
	"github.com/bobg/h5/testutil"
)

func TestRaw(t *testing.T) {
	buf := new(bytes.Buffer)
	log.SetOutput(buf)
	defer log.SetOutput(os.Stderr)

	testutil.Raw(context.Background(), t, New(mem.New()))

	out := buf.String()
	for _, want := range []string{"Append 5 bytes at 5", "WriteAt 4+2", "ERROR ReadAt 8+3"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output lacks %q", want)
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/h5/file"
)

func (c maincmd) info(ctx context.Context, fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err != nil {
		return errors.Wrap(err, "parsing args")
	}

	return c.withFile(ctx, false, func(f *file.File) error {
		size, err := c.s.Size(ctx)
		if err != nil {
			return errors.Wrap(err, "getting store size")
		}
		sc := f.Sizing()
		fmt.Printf("store size:        %d\n", size)
		fmt.Printf("end of file:       %d\n", f.EOF())
		fmt.Printf("offset width:      %d\n", sc.OffsetWidth)
		fmt.Printf("length width:      %d\n", sc.LengthWidth)
		fmt.Printf("group leaf K:      %d\n", sc.GroupLeafK)
		fmt.Printf("group internal K:  %d\n", sc.GroupInternalK)
		fmt.Printf("chunk internal K:  %d\n", sc.ChunkInternalK)
		if size != f.EOF() {
			fmt.Println("(store extends past the recorded end of file)")
		}
		return nil
	})
}

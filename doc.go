// Package pak reads, verifies, and builds the flat offset-indexed archive
// format used to bundle game assets.
//
// An archive is a body of sequential entry payloads followed by a serialized
// index and a trailing footer. Eight historical format revisions are
// supported; the revision is discovered from the footer at open time.
//
// # Reading
//
//	a, err := pak.Open("content.pak")
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	for _, e := range a.Entries() {
//	    fmt.Println(e.Path, e.UncompressedSize)
//	}
//	outcomes, err := a.Extract(ctx, "./out")
//
// # Writing
//
// Archives are always rebuilt whole; there is no in-place mutation. Pack
// writes into a temporary file beside the destination and renames it into
// place only on full success:
//
//	err := pak.Pack(ctx, "content.pak", inputs,
//	    pak.PackWithVersion(4),
//	    pak.PackWithCompression(pak.CompressionZlib),
//	)
//
// Per-entry failures during Extract and Verify are collected into outcome
// lists rather than aborting the batch, so one corrupt entry does not hide
// the state of the others.
package pak

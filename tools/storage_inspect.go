package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"salon-chat/domain/mimetypes"
	"salon-chat/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Prints the attachments stored in a badger object store, one row per object.
func main() {
	dbPath := flag.String("db", "./data/objects", "Path to badger DB")
	prefix := flag.String("prefix", "chat/", "Object key prefix to scan, e.g. chat/42/")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	ctx := context.Background()
	backend := storage.NewBadgerBackend(db, logs.GetLoggerFromLevel(slog.LevelError), "")
	objects, err := backend.List(ctx, *prefix)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Room", "Key", "Size", "Type"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	var total int64
	for _, object := range objects {
		var buf bytes.Buffer
		detected := "unreadable"
		if err := backend.Download(ctx, object.Key, &buf); err != nil {
			fmt.Printf("Error reading key %s: %v\n", object.Key, err)
		} else {
			detected = mimetypes.ContentType(buf.Bytes())
		}
		total += object.Size
		table.Append([]string{roomOf(object.Key), object.Key, strconv.FormatInt(object.Size, 10), detected})
	}
	table.Render()
	fmt.Printf("\n%d objects, %d bytes under %q\n", len(objects), total, *prefix)
}

// roomOf extracts the conversation id of a "chat/{room}/{name}" key.
func roomOf(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 {
		return "-"
	}
	return parts[1]
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}

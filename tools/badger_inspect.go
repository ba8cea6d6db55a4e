package main

import (
	"chat-presence/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/chat", "Path to badger DB")
	what := flag.String("what", "all", "participants, messages or all")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *what == "all" || *what == "participants" {
		if err := printParticipants(db); err != nil {
			log.Fatal(err)
		}
	}
	if *what == "all" || *what == "messages" {
		if err := printMessages(db); err != nil {
			log.Fatal(err)
		}
	}
}

func printParticipants(db *badger.DB) error {
	table := newTable([]string{"Name", "Last seen", "Idle"})
	err := scan(db, repositories.ParticipantPrefix, func(key, v []byte) {
		p, err := repositories.DecodeParticipant(v)
		if err != nil {
			fmt.Printf("Error decoding key %s: %v\n", key, err)
			return
		}
		table.Append([]string{
			p.Name,
			p.LastSeen.Format(time.RFC3339),
			time.Since(p.LastSeen).Truncate(time.Second).String(),
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func printMessages(db *badger.DB) error {
	table := newTable([]string{"Seq", "Time", "Type", "From", "To", "Text"})
	err := scan(db, repositories.MessagePrefix, func(key, v []byte) {
		m, err := repositories.DecodeMessage(v)
		if err != nil {
			fmt.Printf("Error decoding key %s: %v\n", key, err)
			return
		}
		table.Append([]string{
			strconv.FormatUint(m.Seq, 10),
			m.At.Format("15:04:05"),
			string(m.Kind),
			m.From,
			m.To,
			m.Text,
		})
	})
	if err != nil {
		return err
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}

func scan(db *badger.DB, prefix string, fn func(key, value []byte)) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(v []byte) error {
				fn(key, v)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		// A crashed writer leaves the value log untruncated; one read-write open repairs it.
		repaired, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
		if err != nil {
			return nil, fmt.Errorf("repair failed: %w", err)
		}
		_ = repaired.Close()
		return badger.Open(opts)
	}
	return db, err
}

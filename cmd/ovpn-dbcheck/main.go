package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"ovpnadmin/internal/server"
)

func main() {
	dbPath := flag.String("db", envOr("DB_PATH", "./data/ovpnadmin.db"), "path to the service database")
	recent := flag.Int("audit", 10, "number of recent audit entries to print")
	flag.Parse()

	db, err := server.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' ORDER BY name;`)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	fmt.Println("Tables:")
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatalf("scan failed: %v", err)
		}
		fmt.Println(" -", name)
	}
	rows.Close()

	for _, table := range []string{"users", "audit_log"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			fmt.Printf("%s: %v\n", table, err)
			continue
		}
		fmt.Printf("%s: %d\n", table, n)
	}

	if *recent <= 0 {
		return
	}
	entries, err := server.NewSQLiteStore(db).ListAudit(context.Background(), *recent)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	fmt.Println("Recent audit:")
	for _, e := range entries {
		fmt.Printf(" - %d %-8s %-18s %-20s %s\n", e.CreatedAt, e.Result, e.Action, e.Target, e.Actor)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

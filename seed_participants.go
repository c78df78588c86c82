package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file")
	}

	// Get database URL from environment
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set in environment")
	}

	// Connect to database
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Test connection
	err = db.Ping()
	if err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database successfully!")

	// Insert demo participants for local testing
	query := `
		INSERT INTO participants (id, lifecycle_state, fairness_score, last_heartbeat, updated_at)
		VALUES
		    ('demo-alice', 'idle', 0, NOW(), NOW()),
		    ('demo-bob', 'idle', 0, NOW(), NOW()),
		    ('demo-carol', 'idle', 0, NOW(), NOW()),
		    ('demo-dave', 'idle', 0, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
		    lifecycle_state = 'idle',
		    session_id = NULL,
		    partner_id = NULL,
		    waiting_since = NULL,
		    last_heartbeat = NOW(),
		    updated_at = NOW()
	`

	_, err = db.Exec(query)
	if err != nil {
		log.Fatal("Failed to insert demo participants:", err)
	}

	fmt.Println("✅ Demo participants added successfully!")

	// Verify insertion
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM participants WHERE id LIKE 'demo-%'").Scan(&count)
	if err != nil {
		log.Fatal("Failed to verify insertion:", err)
	}

	if count == 4 {
		fmt.Println("✅ Demo participants verified in database!")
	} else {
		fmt.Printf("❌ Expected 4 demo participants, found %d\n", count)
	}

	// List all participants
	fmt.Println("\n📋 All participants:")
	rows, err := db.Query("SELECT id, lifecycle_state, fairness_score FROM participants ORDER BY id")
	if err != nil {
		log.Fatal("Failed to query participants:", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, state string
		var fairness int64
		err := rows.Scan(&id, &state, &fairness)
		if err != nil {
			log.Fatal("Failed to scan participant:", err)
		}
		fmt.Printf("  - %s: %s (fairness %d)\n", id, state, fairness)
	}
}

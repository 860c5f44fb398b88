// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"snipted/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumSnippets int
	ShouldClean bool
}

var (
	languages = []string{
		"go", "python", "javascript", "typescript", "rust", "c", "cpp",
		"java", "ruby", "bash", "sql", "html", "css", "lua", "zig",
	}

	tagPool = []string{
		"algorithms", "sorting", "concurrency", "http", "json", "regex",
		"testing", "cli", "database", "caching", "auth", "networking",
		"parsing", "datetime", "strings", "slices", "generics", "errors",
		"performance", "oneliner", "snippet", "utility", "recursion",
	}

	snippetBodies = []string{
		"func min(a, b int) int {\n\tif a < b {\n\t\treturn a\n\t}\n\treturn b\n}",
		"def fib(n):\n    a, b = 0, 1\n    for _ in range(n):\n        a, b = b, a + b\n    return a",
		"const debounce = (fn, ms) => {\n  let t;\n  return (...args) => {\n    clearTimeout(t);\n    t = setTimeout(() => fn(...args), ms);\n  };\n};",
		"SELECT name, COUNT(*) AS total\nFROM events\nGROUP BY name\nORDER BY total DESC\nLIMIT 10;",
		"for f in *.log; do\n  gzip \"$f\"\ndone",
		"func reverse[T any](s []T) {\n\tfor i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {\n\t\ts[i], s[j] = s[j], s[i]\n\t}\n}",
	}
)

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d snippets...", opts.NumUsers, opts.NumSnippets)
	gofakeit.Seed(time.Now().UnixNano())

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	users, err := createUsers(db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d test users created", len(users))

	tags, err := createTags(db)
	if err != nil {
		return fmt.Errorf("failed to create tags: %w", err)
	}
	log.Printf("%d tags available", len(tags))

	snippets, err := createSnippets(db, users, tags, opts.NumSnippets)
	if err != nil {
		return fmt.Errorf("failed to create snippets: %w", err)
	}
	log.Printf("%d snippets created", len(snippets))

	likes, err := createLikes(db, users, snippets)
	if err != nil {
		return fmt.Errorf("failed to create likes: %w", err)
	}
	log.Printf("%d likes created", likes)

	log.Println("Seeding complete")
	return nil
}

func clearData(db *gorm.DB) error {
	for _, table := range []string{"likes", "snippet_tags", "snippets", "tags", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}
	return nil
}

func createUsers(db *gorm.DB, count int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, count)
	seen := make(map[string]bool)
	for len(users) < count {
		username := strings.ToLower(gofakeit.Username())
		if len(username) < 3 || seen[username] {
			continue
		}
		seen[username] = true

		users = append(users, models.User{
			Username:     username,
			Email:        fmt.Sprintf("%s@%s", username, gofakeit.DomainName()),
			PasswordHash: string(hash),
			IsActive:     true,
		})
	}

	if err := db.Create(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func createTags(db *gorm.DB) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(tagPool))
	for _, name := range tagPool {
		tag := models.Tag{Name: name}
		if err := db.Where("name = ?", name).FirstOrCreate(&tag).Error; err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func createSnippets(db *gorm.DB, users []models.User, tags []models.Tag, count int) ([]models.Snippet, error) {
	snippets := make([]models.Snippet, 0, count)
	for i := 0; i < count; i++ {
		owner := users[rand.Intn(len(users))]
		language := languages[rand.Intn(len(languages))]

		snippet := models.Snippet{
			Title:       strings.TrimSuffix(gofakeit.Sentence(4), "."),
			CodeContent: snippetBodies[rand.Intn(len(snippetBodies))],
			Language:    language,
			UserID:      owner.ID,
			Tags:        pickTags(tags),
			CreatedAt:   gofakeit.DateRange(time.Now().AddDate(0, -3, 0), time.Now()),
		}
		if err := db.Create(&snippet).Error; err != nil {
			return nil, err
		}
		snippets = append(snippets, snippet)
	}
	return snippets, nil
}

func pickTags(tags []models.Tag) []models.Tag {
	n := rand.Intn(4)
	if n == 0 {
		return nil
	}
	picked := make([]models.Tag, 0, n)
	seen := make(map[uint]bool)
	for len(picked) < n {
		tag := tags[rand.Intn(len(tags))]
		if seen[tag.ID] {
			continue
		}
		seen[tag.ID] = true
		picked = append(picked, tag)
	}
	return picked
}

// createLikes hands out likes from random users and credits snippet owners
// with one reputation point per like.
func createLikes(db *gorm.DB, users []models.User, snippets []models.Snippet) (int, error) {
	total := 0
	reputation := make(map[uint]int)

	for _, snippet := range snippets {
		for _, user := range users {
			if user.ID == snippet.UserID || rand.Intn(10) > 2 {
				continue
			}
			like := models.Like{UserID: user.ID, SnippetID: snippet.ID}
			if err := db.Create(&like).Error; err != nil {
				return total, err
			}
			reputation[snippet.UserID]++
			total++
		}
	}

	for userID, points := range reputation {
		if err := db.Model(&models.User{}).Where("id = ?", userID).
			Update("reputation", gorm.Expr("reputation + ?", points)).Error; err != nil {
			return total, err
		}
	}
	return total, nil
}

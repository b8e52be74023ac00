package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/study-planner-api/pkg/auth"
	"github.com/arnavshah/study-planner-api/pkg/config"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <studentID>")
		os.Exit(1)
	}

	studentID := os.Args[1]
	secret := os.Getenv("API_MASTER_SECRET")
	if secret == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in environment or .env")
		os.Exit(1)
	}

	apiKey := auth.New("", secret).GenerateStudentKey(studentID)
	fmt.Printf("Generated Key for %s:\n%s\n", studentID, apiKey)
}

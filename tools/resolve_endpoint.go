package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2/google"

	"dag-trigger-gateway/internal/composer"
	"dag-trigger-gateway/internal/config"
)

// Prints the resolved Airflow webserver coordinates and IAP client id for
// the configured Composer environment. Handy when wiring up a new
// subscription or debugging 403s from IAP.
func main() {
	project := os.Getenv("GOOGLE_PROJECT_NAME")
	environment := os.Getenv("COMPOSER_ENVIRONMENT_NAME")
	location := os.Getenv("GOOGLE_LOCATION")
	if location == "" {
		location = "us-central1"
	}
	dagName := os.Getenv("DAG_NAME")

	if project == "" || environment == "" {
		log.Fatal("Please set GOOGLE_PROJECT_NAME and COMPOSER_ENVIRONMENT_NAME environment variables")
	}

	ctx := context.Background()

	// Surface missing credentials up front; the environment lookup only
	// reports a bare 403 otherwise.
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		log.Fatalf("No application default credentials found: %v", err)
	}
	if creds.ProjectID != "" {
		fmt.Printf("Credentials:  project %s\n", creds.ProjectID)
	}

	resolver, err := composer.NewResolver(ctx, config.ComposerConfig{
		Project:     project,
		Location:    location,
		Environment: environment,
	})
	if err != nil {
		log.Fatalf("Unable to create resolver: %v", err)
	}

	endpoint, err := resolver.ResolveEndpoint(ctx)
	if err != nil {
		log.Fatalf("Unable to resolve endpoint: %v", err)
	}

	fmt.Printf("Airflow URI:  %s\n", endpoint.AirflowURI)
	fmt.Printf("Webserver ID: %s\n", endpoint.WebserverID)
	fmt.Printf("Client ID:    %s\n", endpoint.ClientID)
	if dagName != "" {
		fmt.Printf("DAG run URL:  %s\n", endpoint.DagRunURL("experimental", dagName))
	}
}

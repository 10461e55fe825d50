package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"forgerun/pkg/api"
)

func TestTenantCreateCommand_Success(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if r.URL.Path != "/tenants" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var reqBody api.CreateTenantRequest
		json.NewDecoder(r.Body).Decode(&reqBody)
		if reqBody.Name != "acme-co" {
			t.Errorf("expected name=acme-co, got %v", reqBody.Name)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(api.CreateTenantResponse{
			ID:     "tenant-1",
			Name:   "acme-co",
			ApiKey: "fr_secret",
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"tenant", "create", "--name", "acme-co"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "tenant-1") {
		t.Errorf("expected tenant ID in output, got: %s", output)
	}
	if !strings.Contains(output, "fr_secret") {
		t.Errorf("expected API key in output, got: %s", output)
	}
}

func TestTenantCreateCommand_MissingName(t *testing.T) {
	resetViper()
	tenantCreateCmd.Flags().Set("name", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when validation fails")
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"tenant", "create"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "--name is required") {
		t.Errorf("expected name required error, got: %s", output)
	}
}

func TestTenantCreateCommand_ServerError(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"tenant", "create", "--name", "acme-co"})

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Create failed (500)") {
		t.Errorf("expected create failed message, got: %s", output)
	}
}

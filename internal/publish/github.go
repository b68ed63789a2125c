package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v60/github"
)

// DefaultTarget is the branch releases are tagged on.
const DefaultTarget = "master"

// GitHubAuth selects how the GitHub client authenticates. A non-empty Token
// wins; otherwise the client acts as a GitHub App installation.
type GitHubAuth struct {
	Token string

	AppID          int64
	InstallationID int64
	PrivateKey     []byte
	PrivateKeyPath string
}

// NewGitHubClient creates a GitHub API client from auth.
//
// For App auth the private key can be raw PEM, base64-encoded PEM, or read
// from PrivateKeyPath when PrivateKey is empty.
func NewGitHubClient(auth GitHubAuth) (*gogithub.Client, error) {
	if auth.Token != "" {
		return gogithub.NewClient(nil).WithAuthToken(auth.Token), nil
	}
	if auth.AppID == 0 || auth.InstallationID == 0 {
		return nil, fmt.Errorf("github auth needs a token or an app id and installation id")
	}

	key, err := resolvePrivateKey(auth.PrivateKey, auth.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("resolving private key: %w", err)
	}

	transport, err := ghinstallation.New(http.DefaultTransport, auth.AppID, auth.InstallationID, key)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	return gogithub.NewClient(&http.Client{Transport: transport}), nil
}

func resolvePrivateKey(key []byte, keyPath string) ([]byte, error) {
	if len(key) > 0 {
		s := strings.TrimSpace(string(key))
		if strings.HasPrefix(s, "-----BEGIN") {
			return []byte(s), nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			decoded, err = base64.URLEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("private key is neither PEM nor valid base64: %w", err)
			}
		}
		return decoded, nil
	}

	if keyPath != "" {
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key file %s: %w", keyPath, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("no private key provided: set private_key or private_key_path")
}

// GitHubSink publishes a release with the archive attached as an asset.
type GitHubSink struct {
	client *gogithub.Client
	owner  string
	repo   string
	target string
}

// NewGitHubSink creates a GitHubSink for owner/repo. An empty target means
// DefaultTarget.
func NewGitHubSink(client *gogithub.Client, owner, repo, target string) *GitHubSink {
	if target == "" {
		target = DefaultTarget
	}
	return &GitHubSink{client: client, owner: owner, repo: repo, target: target}
}

func (s *GitHubSink) Name() string {
	return "github:" + s.owner + "/" + s.repo
}

// Publish creates the release and uploads the archive.
func (s *GitHubSink) Publish(ctx context.Context, a *Artifact) error {
	rel, _, err := s.client.Repositories.CreateRelease(ctx, s.owner, s.repo, &gogithub.RepositoryRelease{
		TagName:         gogithub.String(a.Tag),
		Name:            gogithub.String(a.Tag),
		Body:            gogithub.String(a.Notes),
		TargetCommitish: gogithub.String(s.target),
	})
	if err != nil {
		return fmt.Errorf("creating release %s: %w", a.Tag, err)
	}

	f, err := os.Open(a.ArchivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	opts := &gogithub.UploadOptions{Name: a.AssetName(), MediaType: "application/octet-stream"}
	if _, _, err := s.client.Repositories.UploadReleaseAsset(ctx, s.owner, s.repo, rel.GetID(), opts, f); err != nil {
		return fmt.Errorf("uploading %s to release %d: %w", opts.Name, rel.GetID(), err)
	}
	return nil
}

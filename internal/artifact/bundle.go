package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
)

const (
	// TranscriptName is the transcript written before a bundle is built.
	TranscriptName = "transcript.md"
	// BundleName is the archive of every markdown artifact of a conversation.
	BundleName = "conversation_artifacts.zip"
	// TemplateName is where a CloudFormation template is published.
	TemplateName = "template.yaml"

	// DefaultStackName pre-fills the console's create-stack form.
	DefaultStackName = "myteststack"
)

// Bundle writes transcript, then zips every .md object of the conversation
// (transcript included) into BundleName. It returns the archive and its URL.
func Bundle(ctx context.Context, s Store, conversationID, transcript string) ([]byte, string, error) {
	if err := s.Put(ctx, conversationID, TranscriptName, []byte(transcript)); err != nil {
		return nil, "", fmt.Errorf("store transcript: %w", err)
	}

	names, err := s.List(ctx, conversationID)
	if err != nil {
		return nil, "", fmt.Errorf("list artifacts: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		content, err := s.Get(ctx, conversationID, name)
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", name, err)
		}
		w, err := zw.Create(conversationID + "/" + path.Base(name))
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(content); err != nil {
			return nil, "", err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("close archive: %w", err)
	}

	archive := buf.Bytes()
	if err := s.Put(ctx, conversationID, BundleName, archive); err != nil {
		return nil, "", fmt.Errorf("store bundle: %w", err)
	}
	link, err := s.URL(ctx, conversationID, BundleName)
	if err != nil {
		return nil, "", err
	}
	return archive, link, nil
}

// PublishTemplate stores a CloudFormation template and returns its URL.
func PublishTemplate(ctx context.Context, s Store, conversationID, template string) (string, error) {
	if err := s.Put(ctx, conversationID, TemplateName, []byte(template)); err != nil {
		return "", fmt.Errorf("store template: %w", err)
	}
	return s.URL(ctx, conversationID, TemplateName)
}

// DeployURL links to the CloudFormation console with templateURL preloaded.
func DeployURL(region, templateURL string) string {
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://console.aws.amazon.com/cloudformation/home?region=%s#/stacks/new?stackName=%s&templateURL=%s",
		region, DefaultStackName, templateURL)
}

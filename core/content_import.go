package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxImportSize  = 4 * 1024 * 1024
	maxImportPosts = 500
	maxImportTags  = 200
)

// ContentDocument is the YAML package an admin uploads to seed or migrate
// content in bulk. Tags referenced by posts are created when missing.
//
//	tags:
//	  - golang
//	posts:
//	  - title: "Hello"
//	    content: "..."
//	    published: true
//	    tags: [golang]
type ContentDocument struct {
	Tags  []string     `yaml:"tags"`
	Posts []ImportPost `yaml:"posts"`
}

type ImportPost struct {
	Title     string   `yaml:"title"`
	Content   string   `yaml:"content"`
	Published bool     `yaml:"published"`
	Tags      []string `yaml:"tags"`
}

// ContentImportResult summarizes what an import created.
type ContentImportResult struct {
	PostsCreated int `json:"posts_created"`
	TagsCreated  int `json:"tags_created"`
}

// ParseContentDocument decodes and validates a YAML content package.
func ParseContentDocument(data []byte) (ContentDocument, error) {
	if len(data) == 0 {
		return ContentDocument{}, errors.New("document is empty")
	}
	if len(data) > maxImportSize {
		return ContentDocument{}, fmt.Errorf("document exceeds %d bytes", maxImportSize)
	}

	var doc ContentDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ContentDocument{}, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.Posts) == 0 && len(doc.Tags) == 0 {
		return ContentDocument{}, errors.New("document has no posts or tags")
	}
	if len(doc.Posts) > maxImportPosts {
		return ContentDocument{}, fmt.Errorf("too many posts (max %d)", maxImportPosts)
	}
	if len(doc.Tags) > maxImportTags {
		return ContentDocument{}, fmt.Errorf("too many tags (max %d)", maxImportTags)
	}
	for i, p := range doc.Posts {
		if strings.TrimSpace(p.Title) == "" {
			return ContentDocument{}, fmt.Errorf("post %d: title is required", i+1)
		}
		if strings.TrimSpace(p.Content) == "" {
			return ContentDocument{}, fmt.Errorf("post %d: content is required", i+1)
		}
	}
	return doc, nil
}

// ContentImporter writes a parsed document through the repositories. Posts
// are attributed to the importing user's claim.
type ContentImporter struct {
	posts PostRepository
	tags  TagRepository
}

func NewContentImporter(posts PostRepository, tags TagRepository) *ContentImporter {
	return &ContentImporter{posts: posts, tags: tags}
}

func (ci *ContentImporter) Import(ctx context.Context, doc ContentDocument, author Claim) (ContentImportResult, error) {
	var result ContentImportResult

	known := map[string]int64{}
	for _, t := range ci.collectTagNames(doc) {
		tag, created, err := ci.ensureTag(ctx, t)
		if err != nil {
			return result, fmt.Errorf("tag %q: %w", t, err)
		}
		known[t] = tag.ID
		if created {
			result.TagsCreated++
		}
	}

	for i, p := range doc.Posts {
		in := PostCreateInput{
			AuthorID:    author.ID,
			Title:       p.Title,
			Content:     p.Content,
			IsPublished: p.Published,
		}
		for _, name := range p.Tags {
			if id, ok := known[normalizeTagName(name)]; ok {
				in.TagIDs = append(in.TagIDs, id)
			}
		}
		if _, err := ci.posts.Create(ctx, in); err != nil {
			return result, fmt.Errorf("post %d (%q): %w", i+1, p.Title, err)
		}
		result.PostsCreated++
	}
	return result, nil
}

func (ci *ContentImporter) collectTagNames(doc ContentDocument) []string {
	seen := map[string]struct{}{}
	var names []string
	add := func(name string) {
		name = normalizeTagName(name)
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, t := range doc.Tags {
		add(t)
	}
	for _, p := range doc.Posts {
		for _, t := range p.Tags {
			add(t)
		}
	}
	return names
}

func (ci *ContentImporter) ensureTag(ctx context.Context, name string) (*Tag, bool, error) {
	tag, err := ci.tags.Create(ctx, name)
	if err == nil {
		return tag, true, nil
	}
	if !errors.Is(err, ErrDuplicateTag) {
		return nil, false, err
	}
	// Already present; resolve its id.
	existing, err := ci.findTagByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (ci *ContentImporter) findTagByName(ctx context.Context, name string) (*Tag, error) {
	tags, err := ci.tags.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if tags[i].Name == name {
			return &tags[i], nil
		}
	}
	return nil, ErrTagNotFound
}

func normalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

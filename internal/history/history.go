// Package history keeps a git log of the visit file in the data directory.
package history

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

// Commit is one entry of the data file history.
type Commit struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	When    time.Time `json:"when"`
}

// Recorder commits the data file after each mutation.
type Recorder struct {
	mu     sync.Mutex
	repo   *gogit.Repository
	file   string
	author Author
}

// Open opens the git repository at dir, initialising it when absent. file
// is the data file path relative to dir.
func Open(dir, file string, author Author) (*Recorder, error) {
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		repo, err = gogit.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("history: open repo: %w", err)
	}
	return &Recorder{repo: repo, file: file, author: author}, nil
}

// Record stages the data file and commits it with msg. It returns the new
// commit hash, or "" when the file has no staged changes.
func (r *Recorder) Record(msg string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("history: worktree: %w", err)
	}
	if _, err := w.Add(r.file); err != nil {
		return "", fmt.Errorf("history: stage %s: %w", r.file, err)
	}
	status, err := w.Status()
	if err != nil {
		return "", fmt.Errorf("history: status: %w", err)
	}
	if st, ok := status[r.file]; !ok || st.Staging == gogit.Unmodified {
		return "", nil
	}

	sig := &object.Signature{Name: r.author.Name, Email: r.author.Email, When: time.Now()}
	h, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("history: commit: %w", err)
	}
	return h.String(), nil
}

// Log returns up to n commits touching the data file, newest first. A
// repository without commits has an empty history.
func (r *Recorder) Log(n int) ([]Commit, error) {
	if n <= 0 || n > 1000 {
		n = 1000
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.repo.Head(); err != nil {
		return []Commit{}, nil
	}
	file := r.file
	iter, err := r.repo.Log(&gogit.LogOptions{FileName: &file})
	if err != nil {
		return nil, fmt.Errorf("history: log: %w", err)
	}
	defer iter.Close()

	out := []Commit{}
	for range n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
	}
	return out, nil
}

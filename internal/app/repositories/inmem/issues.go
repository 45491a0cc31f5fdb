package inmem

import (
	"context"
	"sort"
	"strings"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
)

type issueRepository struct {
	s *Store
}

func copyIssue(i *models.Issue) *models.Issue {
	cp := *i
	return &cp
}

func (r *issueRepository) Create(_ context.Context, issue *models.Issue) error {
	if err := r.s.fail("issues.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.db.users[issue.StudentID]; !ok {
		return apperrors.NewFieldError("studentId", "Student does not exist")
	}
	if issue.AssignedToID != nil {
		if _, ok := r.s.db.users[*issue.AssignedToID]; !ok {
			return apperrors.NewFieldError("assignedToId", "Assignee does not exist")
		}
	}

	now := r.s.now()
	issue.ID = r.s.db.nextID()
	issue.Version = 1
	issue.CreatedAt = now
	issue.UpdatedAt = now
	r.s.db.issues[issue.ID] = copyIssue(issue)
	return nil
}

func (r *issueRepository) GetByID(_ context.Context, id int64) (*models.Issue, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.db.issues[id]
	if !ok {
		return nil, apperrors.ErrIssueNotFound
	}
	return copyIssue(i), nil
}

// GetByIDForUpdate needs no lock of its own: transactions are serialised.
func (r *issueRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Issue, error) {
	return r.GetByID(ctx, id)
}

func matchesIssue(i *models.Issue, p repositories.IssueListParams) bool {
	if !p.Scope.Matches(i) {
		return false
	}
	if p.Status != nil && i.Status != *p.Status {
		return false
	}
	if p.Category != nil && i.Category != *p.Category {
		return false
	}
	if p.Priority != nil && i.Priority != *p.Priority {
		return false
	}
	if p.AssignedToID != nil && !i.IsAssignedTo(*p.AssignedToID) {
		return false
	}
	if p.Search != "" {
		needle := strings.ToLower(p.Search)
		if !strings.Contains(strings.ToLower(i.Title), needle) &&
			!strings.Contains(strings.ToLower(i.Description), needle) {
			return false
		}
	}
	return true
}

func issueLess(sortBy string) func(a, b *models.Issue) int {
	return func(a, b *models.Issue) int {
		switch sortBy {
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "priority":
			return a.Priority.Rank() - b.Priority.Rank()
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "title":
			return strings.Compare(a.Title, b.Title)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r *issueRepository) List(_ context.Context, p repositories.IssueListParams) ([]*models.Issue, int64, error) {
	if p.Scope.Empty() {
		return []*models.Issue{}, 0, nil
	}

	r.s.mu.RLock()
	matched := []*models.Issue{}
	for _, i := range r.s.db.issues {
		if matchesIssue(i, p) {
			matched = append(matched, copyIssue(i))
		}
	}
	r.s.mu.RUnlock()

	cmp := issueLess(p.SortBy)
	sort.Slice(matched, func(x, y int) bool {
		c := cmp(matched[x], matched[y])
		if c == 0 {
			c = int(matched[x].ID - matched[y].ID)
		}
		if p.SortDesc {
			return c > 0
		}
		return c < 0
	})

	return page(matched, p.Page, p.Size), int64(len(matched)), nil
}

func (r *issueRepository) Update(_ context.Context, issue *models.Issue) error {
	if err := r.s.fail("issues.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.db.issues[issue.ID]
	if !ok {
		return apperrors.ErrIssueNotFound
	}
	if stored.Version != issue.Version {
		return apperrors.ErrIssueModified
	}

	issue.Version++
	issue.UpdatedAt = r.s.now()
	updated := copyIssue(issue)
	// Ownership and origin never change after creation.
	updated.StudentID = stored.StudentID
	updated.StudentName = stored.StudentName
	updated.College = stored.College
	updated.CreatedAt = stored.CreatedAt
	r.s.db.issues[issue.ID] = updated
	return nil
}

// Delete cascades to comments, attachments and notifications like the schema does.
func (r *issueRepository) Delete(_ context.Context, id int64) error {
	if err := r.s.fail("issues.delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.db.issues[id]; !ok {
		return apperrors.ErrIssueNotFound
	}
	delete(r.s.db.issues, id)
	for cid, c := range r.s.db.comments {
		if c.IssueID == id {
			delete(r.s.db.comments, cid)
		}
	}
	for aid, a := range r.s.db.attachments {
		if a.IssueID == id {
			delete(r.s.db.attachments, aid)
		}
	}
	for nid, n := range r.s.db.notifications {
		if n.IssueID != nil && *n.IssueID == id {
			delete(r.s.db.notifications, nid)
		}
	}
	for _, a := range r.s.db.auditLogs {
		if a.IssueID != nil && *a.IssueID == id {
			a.IssueID = nil
		}
	}
	return nil
}

func (r *issueRepository) CountByStatus(_ context.Context, scope models.IssueScope) (map[models.IssueStatus]int64, error) {
	counts := map[models.IssueStatus]int64{}
	if scope.Empty() {
		return counts, nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, i := range r.s.db.issues {
		if scope.Matches(i) {
			counts[i.Status]++
		}
	}
	return counts, nil
}

type commentRepository struct {
	s *Store
}

func (r *commentRepository) Create(_ context.Context, comment *models.Comment) error {
	if err := r.s.fail("comments.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.db.issues[comment.IssueID]; !ok {
		return apperrors.ErrIssueNotFound
	}
	comment.ID = r.s.db.nextID()
	comment.CreatedAt = r.s.now()
	cp := *comment
	cp.Author = nil
	r.s.db.comments[comment.ID] = &cp
	return nil
}

func (r *commentRepository) ListByIssue(_ context.Context, issueID int64) ([]*models.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Comment{}
	for _, c := range r.s.db.comments {
		if c.IssueID != issueID {
			continue
		}
		cp := *c
		if u, ok := r.s.db.users[c.UserID]; ok {
			cp.Author = copyUser(u)
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type attachmentRepository struct {
	s *Store
}

func (r *attachmentRepository) Create(_ context.Context, a *models.Attachment) error {
	if err := r.s.fail("attachments.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.db.issues[a.IssueID]; !ok {
		return apperrors.ErrIssueNotFound
	}
	a.ID = r.s.db.nextID()
	a.CreatedAt = r.s.now()
	cp := *a
	r.s.db.attachments[a.ID] = &cp
	return nil
}

func (r *attachmentRepository) GetByID(_ context.Context, id int64) (*models.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.db.attachments[id]
	if !ok {
		return nil, apperrors.ErrAttachmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *attachmentRepository) ListByIssue(_ context.Context, issueID int64) ([]*models.Attachment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*models.Attachment{}
	for _, a := range r.s.db.attachments {
		if a.IssueID == issueID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByID(out, func(a *models.Attachment) int64 { return a.ID })
	return out, nil
}

func (r *attachmentRepository) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.db.attachments[id]; !ok {
		return apperrors.ErrAttachmentNotFound
	}
	delete(r.s.db.attachments, id)
	return nil
}

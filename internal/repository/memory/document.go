package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
)

var _ repository.DocumentRepository = &DocumentMemory{}

type DocumentMemory struct {
	store *Store
}

func (r *DocumentMemory) CreateWithVersion(
	_ context.Context,
	doc entity.Document,
	version entity.DocumentVersion,
) error {
	if err := doc.TenantID.Validate(); err != nil {
		return err
	}
	if doc.ID == "" || version.ID == "" {
		return fmt.Errorf("%w: document and version ids are required", entity.ErrMissingField)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.store.partition(doc.TenantID, true)
	if _, exists := p.documents[doc.ID]; exists {
		return fmt.Errorf("create document with version: duplicate document id %s", doc.ID)
	}
	if _, exists := p.versions[version.ID]; exists {
		return fmt.Errorf("create document with version: duplicate version id %s", version.ID)
	}

	now := r.store.now()
	doc.ActiveVersionID = nil
	doc.CreatedAt, doc.UpdatedAt = now, now

	version.DocumentID = doc.ID
	version.TenantID = doc.TenantID
	version.Status = entity.VersionStatusProcessing
	version.CreatedAt, version.UpdatedAt = now, now

	p.documents[doc.ID] = &doc
	p.versions[version.ID] = &version
	p.documentOrder = append(p.documentOrder, doc.ID)

	return nil
}

func (r *DocumentMemory) Get(_ context.Context, tenant entity.TenantID, id string) (*entity.Document, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return nil, entity.ErrDocumentNotFound
	}

	doc, ok := p.documents[id]
	if !ok {
		return nil, entity.ErrDocumentNotFound
	}
	return cloneDocument(doc), nil
}

func (r *DocumentMemory) List(_ context.Context, tenant entity.TenantID) ([]*entity.DocumentWithStatus, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	documents := make([]*entity.DocumentWithStatus, 0)
	p := r.store.partition(tenant, false)
	if p == nil {
		return documents, nil
	}

	// Newest first.
	for i := len(p.documentOrder) - 1; i >= 0; i-- {
		doc, ok := p.documents[p.documentOrder[i]]
		if !ok {
			continue
		}
		documents = append(documents, &entity.DocumentWithStatus{
			Document: *cloneDocument(doc),
			Status:   p.displayStatus(doc),
		})
	}

	return documents, nil
}

// displayStatus is the active version's status, else the latest version's,
// else DocumentStatusNoVersion.
func (p *partition) displayStatus(doc *entity.Document) string {
	if doc.ActiveVersionID != nil {
		if v, ok := p.versions[*doc.ActiveVersionID]; ok {
			return string(v.Status)
		}
	}

	var latest *entity.DocumentVersion
	for _, v := range p.versions {
		if v.DocumentID != doc.ID {
			continue
		}
		if latest == nil || v.Number > latest.Number {
			latest = v
		}
	}

	if latest == nil {
		return entity.DocumentStatusNoVersion
	}
	return string(latest.Status)
}

func (r *DocumentMemory) Delete(_ context.Context, tenant entity.TenantID, id string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return entity.ErrDocumentNotFound
	}
	if _, ok := p.documents[id]; !ok {
		return entity.ErrDocumentNotFound
	}

	kept := p.chunks[:0]
	for _, c := range p.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	clear(p.chunks[len(kept):])
	p.chunks = kept

	for versionID, v := range p.versions {
		if v.DocumentID == id {
			delete(p.versions, versionID)
		}
	}

	delete(p.documents, id)
	for i, docID := range p.documentOrder {
		if docID == id {
			p.documentOrder = append(p.documentOrder[:i], p.documentOrder[i+1:]...)
			break
		}
	}

	return nil
}

func (r *DocumentMemory) GetVersion(
	_ context.Context,
	tenant entity.TenantID,
	versionID string,
) (*entity.DocumentVersion, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return nil, entity.ErrVersionNotFound
	}

	v, ok := p.versions[versionID]
	if !ok {
		return nil, entity.ErrVersionNotFound
	}
	out := *v
	return &out, nil
}

func (r *DocumentMemory) ListVersions(
	_ context.Context,
	tenant entity.TenantID,
	documentID string,
) ([]*entity.DocumentVersion, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	versions := make([]*entity.DocumentVersion, 0)
	p := r.store.partition(tenant, false)
	if p == nil {
		return nil, entity.ErrDocumentNotFound
	}
	if _, ok := p.documents[documentID]; !ok {
		return nil, entity.ErrDocumentNotFound
	}

	for _, v := range p.versions {
		if v.DocumentID == documentID {
			out := *v
			out.Text = ""
			versions = append(versions, &out)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number < versions[j].Number
	})

	return versions, nil
}

func (r *DocumentMemory) ActivateVersion(
	_ context.Context,
	tenant entity.TenantID,
	documentID string,
	versionID string,
) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return entity.ErrDocumentNotFound
	}

	doc, ok := p.documents[documentID]
	if !ok {
		return entity.ErrDocumentNotFound
	}

	if v, ok := p.versions[versionID]; !ok || v.DocumentID != documentID {
		return entity.ErrVersionNotFound
	}

	// Both writes happen under the same lock, so readers never see one without the other.
	if err := p.transition(versionID, entity.VersionStatusActive, r.store.now()); err != nil {
		return err
	}

	id := versionID
	doc.ActiveVersionID = &id
	doc.UpdatedAt = r.store.now()

	return nil
}

func (r *DocumentMemory) MarkVersionError(_ context.Context, tenant entity.TenantID, versionID string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return entity.ErrVersionNotFound
	}

	return p.transition(versionID, entity.VersionStatusError, r.store.now())
}

func (p *partition) transition(versionID string, next entity.VersionStatus, now time.Time) error {
	v, ok := p.versions[versionID]
	if !ok {
		return entity.ErrVersionNotFound
	}

	if !v.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidVersionTransition, v.Status, next)
	}

	v.Status = next
	v.UpdatedAt = now
	return nil
}

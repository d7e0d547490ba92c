package state

import (
	"crypto/sha256"
	"encoding/hex"
	"github.com/pkg/errors"
	"github.com/revolution1/unitgate/config"
	"github.com/revolution1/unitgate/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNoRevision = errors.New("no revision recorded")

// Store keeps the applied documents in a sqlite database so a restart can
// resume from the last one.
type Store struct {
	db *gorm.DB
}

func Open(path string, debug bool) (*Store, error) {
	conf := &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Discard,
	}
	if debug {
		conf.Logger = logger.Default
	}
	db, err := gorm.Open(sqlite.Open(path), conf)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open state %s", path)
	}
	if err := db.AutoMigrate(&Revision{}); err != nil {
		return nil, errors.Wrap(err, "unable to migrate state")
	}
	return &Store{db: db}, nil
}

// Record stores conf as the document of generation. A document identical to
// the latest revision is not stored again, the latest revision is returned.
func (s *Store) Record(generation uint64, conf *types.Config) (*Revision, error) {
	doc, err := config.Marshal(conf, config.FormatJSON)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(doc)
	digest := hex.EncodeToString(sum[:])
	latest, err := s.Latest()
	if err != nil && !errors.Is(err, ErrNoRevision) {
		return nil, err
	}
	if latest != nil && latest.Digest == digest {
		return latest, nil
	}
	rev := &Revision{Generation: generation, Digest: digest, Document: string(doc)}
	if err := s.db.Create(rev).Error; err != nil {
		return nil, errors.Wrap(err, "unable to record revision")
	}
	return rev, nil
}

func (s *Store) Latest() (*Revision, error) {
	var rev Revision
	err := s.db.Order("id desc").First(&rev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoRevision
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to read latest revision")
	}
	return &rev, nil
}

// Restore parses the latest recorded document.
func (s *Store) Restore() (*types.Config, error) {
	rev, err := s.Latest()
	if err != nil {
		return nil, err
	}
	conf, err := config.Parse([]byte(rev.Document))
	if err != nil {
		return nil, errors.Wrapf(err, "revision %d", rev.ID)
	}
	return conf, nil
}

// History lists the newest revisions first, documents are left out.
func (s *Store) History(limit int) ([]Revision, error) {
	var revs []Revision
	q := s.db.Select("id", "created_at", "updated_at", "generation", "digest").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&revs).Error; err != nil {
		return nil, errors.Wrap(err, "unable to list revisions")
	}
	return revs, nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

package db

import (
	"context"
	"database/sql"
	"errors"

	"triage-kiosk/pkg"
)

// ErrPersonNotFound is returned when no person matches a normalized national
// ID.
var ErrPersonNotFound = errors.New("person not found")

// Store wraps database operations for people and patient records. A single
// postgres database backs the kiosk; every call is one short-lived statement.
type Store struct {
	DB *sql.DB
}

// NewStore constructs a Store from an existing sql.DB. The caller is
// responsible for managing the DB connection lifecycle.
func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

// FindPersonByNationalID looks a person up by their normalized 11-digit
// national ID. The column carries a unique constraint, so at most one row
// matches.
func (s *Store) FindPersonByNationalID(ctx context.Context, nationalID string) (*pkg.Person, error) {
	var p pkg.Person
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, cpf, data_nascimento, sexo, carteira
         FROM pessoa
         WHERE cpf = $1`,
		nationalID,
	).Scan(&p.ID, &p.Name, &p.NationalID, &p.BirthDate, &p.Sex, &p.CardNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPatientRecord writes the classification outcome for a person,
// overwriting any record from a previous visit in place. The patient row
// shares its primary key with the person row.
func (s *Store) UpsertPatientRecord(ctx context.Context, rec *pkg.PatientRecord) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE paciente
         SET description = $1, temperatura = $2, saturacao = $3,
             pressao_sistolica = $4, pressao_diastolica = $5,
             risk_level = $6, data_consulta = $7, hora_consulta = $8
         WHERE id = $9`,
		rec.Description, rec.Temperature, rec.Saturation,
		rec.Pressure.Systolic, rec.Pressure.Diastolic,
		int(rec.RiskLevel), rec.VisitDate, rec.VisitTime, rec.PersonID,
	)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO paciente (id, description, temperatura, saturacao,
                 pressao_sistolica, pressao_diastolica, risk_level,
                 data_consulta, hora_consulta)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.PersonID, rec.Description, rec.Temperature, rec.Saturation,
			rec.Pressure.Systolic, rec.Pressure.Diastolic,
			int(rec.RiskLevel), rec.VisitDate, rec.VisitTime,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateRecordDescription replaces the description on an existing patient
// record, used when a refined description arrives after classification.
func (s *Store) UpdateRecordDescription(ctx context.Context, personID int64, description string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE paciente SET description = $1 WHERE id = $2`,
		description, personID,
	)
	if err != nil {
		return err
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrPersonNotFound
	}
	return nil
}

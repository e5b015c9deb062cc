package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/storage/models"
	"github.com/costquest/backend/pkg/logger"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrEstimateNotFound  = errors.New("cost estimate not found")
	ErrNoAnalysis        = errors.New("no analysis exists for challenge")
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS student_challenges (
		challenge_id TEXT PRIMARY KEY,
		challenge_name TEXT NOT NULL,
		challenge_objectives TEXT,
		challenge_instructions TEXT,
		site_location TEXT,
		file_url TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ai_analysis (
		analysis_id TEXT PRIMARY KEY,
		challenge_id TEXT NOT NULL,
		overall_confidence REAL NOT NULL DEFAULT 0.5,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at INTEGER NOT NULL,
		FOREIGN KEY (challenge_id) REFERENCES student_challenges(challenge_id)
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_challenge ON ai_analysis(challenge_id, created_at);

	CREATE TABLE IF NOT EXISTS structural_elements (
		element_id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		element_type TEXT NOT NULL,
		material_category TEXT,
		dimensions TEXT,
		coordinates TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES ai_analysis(analysis_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_elements_analysis ON structural_elements(analysis_id);

	CREATE TABLE IF NOT EXISTS ai_cost_estimates (
		estimate_id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		item_number INTEGER NOT NULL,
		description TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		unit TEXT,
		cost_category TEXT NOT NULL,
		unit_price REAL,
		amount REAL NOT NULL DEFAULT 0,
		assumptions TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES ai_analysis(analysis_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ai_estimates_analysis ON ai_cost_estimates(analysis_id);

	CREATE TABLE IF NOT EXISTS cost_estimates_summary (
		summary_id TEXT PRIMARY KEY,
		challenge_id TEXT NOT NULL UNIQUE,
		analysis_id TEXT NOT NULL,
		earthwork_amount REAL NOT NULL DEFAULT 0,
		formwork_amount REAL NOT NULL DEFAULT 0,
		masonry_amount REAL NOT NULL DEFAULT 0,
		concrete_amount REAL NOT NULL DEFAULT 0,
		steelwork_amount REAL NOT NULL DEFAULT 0,
		carpentry_amount REAL NOT NULL DEFAULT 0,
		roofing_amount REAL NOT NULL DEFAULT 0,
		total_material_cost REAL NOT NULL DEFAULT 0,
		labor_cost REAL NOT NULL DEFAULT 0,
		contingencies_amount REAL NOT NULL DEFAULT 0,
		grand_total_cost REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS materials_prices (
		material_id INTEGER PRIMARY KEY AUTOINCREMENT,
		material TEXT NOT NULL,
		brand TEXT,
		size TEXT,
		unit TEXT,
		price TEXT,
		vendor TEXT,
		location TEXT,
		teacher_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_materials_teacher ON materials_prices(teacher_id);

	CREATE TABLE IF NOT EXISTS students_cost_estimates (
		estimate_id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		subtotal_amount REAL NOT NULL DEFAULT 0,
		contingency_percentage REAL NOT NULL DEFAULT 0.10,
		contingency_amount REAL NOT NULL DEFAULT 0,
		total_amount REAL NOT NULL DEFAULT 0,
		submitted_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(student_id, challenge_id)
	);

	CREATE TABLE IF NOT EXISTS cost_estimate_items (
		item_id TEXT PRIMARY KEY,
		estimate_id TEXT NOT NULL,
		cost_category TEXT NOT NULL,
		material_name TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 0,
		unit TEXT,
		unit_price REAL NOT NULL DEFAULT 0,
		amount REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (estimate_id) REFERENCES students_cost_estimates(estimate_id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_estimate_items ON cost_estimate_items(estimate_id);

	CREATE TABLE IF NOT EXISTS student_accuracy (
		record_id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		accuracy REAL NOT NULL DEFAULT 0,
		details TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(student_id, challenge_id)
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertChallenge(ch *models.Challenge) error {
	query := `
		INSERT INTO student_challenges (challenge_id, challenge_name, challenge_objectives,
			challenge_instructions, site_location, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		ch.ID,
		ch.Name,
		ch.Objectives,
		ch.Instructions,
		ch.SiteLocation,
		ch.FileURL,
		ch.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}

	logger.Debug("Challenge inserted", zap.String("challenge_id", ch.ID))
	return nil
}

func (c *Client) GetChallenge(id string) (*models.Challenge, error) {
	query := `
		SELECT challenge_id, challenge_name, challenge_objectives, challenge_instructions,
			site_location, file_url, created_at
		FROM student_challenges WHERE challenge_id = ?
	`

	var ch models.Challenge
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&ch.ID,
		&ch.Name,
		&ch.Objectives,
		&ch.Instructions,
		&ch.SiteLocation,
		&ch.FileURL,
		&createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	ch.CreatedAt = time.Unix(createdAt, 0)
	return &ch, nil
}

func (c *Client) InsertAnalysis(a *models.Analysis) error {
	query := `
		INSERT INTO ai_analysis (analysis_id, challenge_id, overall_confidence, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query, a.ID, a.ChallengeID, a.OverallConfidence, a.Status, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	return nil
}

func (c *Client) UpdateAnalysisConfidence(analysisID string, confidence float64) error {
	_, err := c.db.Exec(`UPDATE ai_analysis SET overall_confidence = ? WHERE analysis_id = ?`,
		confidence, analysisID)
	if err != nil {
		return fmt.Errorf("failed to update analysis confidence: %w", err)
	}
	return nil
}

func (c *Client) UpdateAnalysisStatus(analysisID, status string) error {
	_, err := c.db.Exec(`UPDATE ai_analysis SET status = ? WHERE analysis_id = ?`,
		status, analysisID)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	return nil
}

// LatestAnalysis returns the most recent run for a challenge. Older runs are
// kept but superseded.
func (c *Client) LatestAnalysis(challengeID string) (*models.Analysis, error) {
	query := `
		SELECT analysis_id, challenge_id, overall_confidence, status, created_at
		FROM ai_analysis
		WHERE challenge_id = ?
		ORDER BY created_at DESC, analysis_id DESC
		LIMIT 1
	`

	var a models.Analysis
	var createdAt int64

	err := c.db.QueryRow(query, challengeID).Scan(
		&a.ID, &a.ChallengeID, &a.OverallConfidence, &a.Status, &createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNoAnalysis, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest analysis: %w", err)
	}

	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

func (c *Client) InsertElement(e *models.StructuralElement) error {
	query := `
		INSERT INTO structural_elements (element_id, analysis_id, element_type,
			material_category, dimensions, coordinates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		e.ID,
		e.AnalysisID,
		e.ElementType,
		e.MaterialCategory,
		e.Dimensions,
		e.Coordinates,
		e.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert structural element: %w", err)
	}

	return nil
}

func (c *Client) ListElements(analysisID string) ([]models.StructuralElement, error) {
	query := `
		SELECT element_id, analysis_id, element_type, material_category, dimensions, coordinates, created_at
		FROM structural_elements WHERE analysis_id = ? ORDER BY created_at, element_id
	`

	rows, err := c.db.Query(query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list elements: %w", err)
	}
	defer rows.Close()

	var elements []models.StructuralElement
	for rows.Next() {
		var e models.StructuralElement
		var createdAt int64

		err := rows.Scan(&e.ID, &e.AnalysisID, &e.ElementType, &e.MaterialCategory,
			&e.Dimensions, &e.Coordinates, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.CreatedAt = time.Unix(createdAt, 0)
		elements = append(elements, e)
	}

	return elements, rows.Err()
}

func (c *Client) InsertBoQLine(line *models.BoQLine) error {
	query := `
		INSERT INTO ai_cost_estimates (estimate_id, analysis_id, item_number, description,
			quantity, unit, cost_category, unit_price, amount, assumptions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		line.ID,
		line.AnalysisID,
		line.ItemNumber,
		line.Description,
		line.Quantity,
		line.Unit,
		line.CostCategory,
		line.UnitPrice,
		line.Amount,
		line.Assumptions,
		line.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert BoQ line: %w", err)
	}

	return nil
}

func (c *Client) ListBoQLines(analysisID string) ([]models.BoQLine, error) {
	query := `
		SELECT estimate_id, analysis_id, item_number, description, quantity, unit,
			cost_category, unit_price, amount, assumptions, created_at
		FROM ai_cost_estimates
		WHERE analysis_id = ?
		ORDER BY cost_category, item_number
	`

	rows, err := c.db.Query(query, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list BoQ lines: %w", err)
	}
	defer rows.Close()

	return scanBoQLines(rows)
}

// ListBoQLinesByChallenge returns every persisted AI line across all runs for
// a challenge. Curation reconciles against this set.
func (c *Client) ListBoQLinesByChallenge(challengeID string) ([]models.BoQLine, error) {
	query := `
		SELECT e.estimate_id, e.analysis_id, e.item_number, e.description, e.quantity, e.unit,
			e.cost_category, e.unit_price, e.amount, e.assumptions, e.created_at
		FROM ai_cost_estimates e
		JOIN ai_analysis a ON a.analysis_id = e.analysis_id
		WHERE a.challenge_id = ?
		ORDER BY e.cost_category, e.item_number
	`

	rows, err := c.db.Query(query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list BoQ lines by challenge: %w", err)
	}
	defer rows.Close()

	return scanBoQLines(rows)
}

func scanBoQLines(rows *sql.Rows) ([]models.BoQLine, error) {
	var lines []models.BoQLine
	for rows.Next() {
		var l models.BoQLine
		var createdAt int64
		var unit, assumptions sql.NullString
		var unitPrice sql.NullFloat64

		err := rows.Scan(&l.ID, &l.AnalysisID, &l.ItemNumber, &l.Description, &l.Quantity,
			&unit, &l.CostCategory, &unitPrice, &l.Amount, &assumptions, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		l.Unit = unit.String
		l.Assumptions = assumptions.String
		if unitPrice.Valid {
			price := unitPrice.Float64
			l.UnitPrice = &price
		}
		l.CreatedAt = time.Unix(createdAt, 0)
		lines = append(lines, l)
	}

	return lines, rows.Err()
}

// ReconcileBoQLines applies a teacher-curated line set in one transaction:
// lines carrying an existing id are updated, lines without are inserted under
// analysisID, and persisted lines for the challenge missing from the incoming
// id set are deleted.
func (c *Client) ReconcileBoQLines(challengeID, analysisID string, lines []models.BoQLine) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[string]bool, len(lines))

	for i := range lines {
		line := &lines[i]
		if line.ID != "" {
			keep[line.ID] = true
			_, err = tx.Exec(`
				UPDATE ai_cost_estimates
				SET item_number = ?, description = ?, quantity = ?, unit = ?,
					cost_category = ?, unit_price = ?, amount = ?, assumptions = ?
				WHERE estimate_id = ?`,
				line.ItemNumber, line.Description, line.Quantity, line.Unit,
				line.CostCategory, line.UnitPrice, line.Amount, line.Assumptions, line.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to update BoQ line %s: %w", line.ID, err)
			}
			continue
		}

		line.ID = uuid.New().String()
		keep[line.ID] = true
		_, err = tx.Exec(`
			INSERT INTO ai_cost_estimates (estimate_id, analysis_id, item_number, description,
				quantity, unit, cost_category, unit_price, amount, assumptions, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			line.ID, analysisID, line.ItemNumber, line.Description, line.Quantity,
			line.Unit, line.CostCategory, line.UnitPrice, line.Amount, line.Assumptions,
			time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert BoQ line: %w", err)
		}
	}

	existing, err := tx.Query(`
		SELECT e.estimate_id FROM ai_cost_estimates e
		JOIN ai_analysis a ON a.analysis_id = e.analysis_id
		WHERE a.challenge_id = ?`, challengeID)
	if err != nil {
		return fmt.Errorf("failed to list existing lines: %w", err)
	}

	var toDelete []string
	for existing.Next() {
		var id string
		if err := existing.Scan(&id); err != nil {
			existing.Close()
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if !keep[id] {
			toDelete = append(toDelete, id)
		}
	}
	if err := existing.Err(); err != nil {
		existing.Close()
		return fmt.Errorf("failed to iterate existing lines: %w", err)
	}
	existing.Close()

	for _, id := range toDelete {
		if _, err := tx.Exec(`DELETE FROM ai_cost_estimates WHERE estimate_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete BoQ line %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	logger.Info("BoQ lines reconciled",
		zap.String("challenge_id", challengeID),
		zap.Int("kept", len(keep)),
		zap.Int("deleted", len(toDelete)),
	)

	return nil
}

func (c *Client) UpsertEstimateSummary(s *models.EstimateSummary) error {
	query := `
		INSERT INTO cost_estimates_summary (summary_id, challenge_id, analysis_id,
			earthwork_amount, formwork_amount, masonry_amount, concrete_amount,
			steelwork_amount, carpentry_amount, roofing_amount, total_material_cost,
			labor_cost, contingencies_amount, grand_total_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(challenge_id) DO UPDATE SET
			analysis_id = excluded.analysis_id,
			earthwork_amount = excluded.earthwork_amount,
			formwork_amount = excluded.formwork_amount,
			masonry_amount = excluded.masonry_amount,
			concrete_amount = excluded.concrete_amount,
			steelwork_amount = excluded.steelwork_amount,
			carpentry_amount = excluded.carpentry_amount,
			roofing_amount = excluded.roofing_amount,
			total_material_cost = excluded.total_material_cost,
			labor_cost = excluded.labor_cost,
			contingencies_amount = excluded.contingencies_amount,
			grand_total_cost = excluded.grand_total_cost
	`

	_, err := c.db.Exec(
		query,
		s.ID, s.ChallengeID, s.AnalysisID,
		s.EarthworkAmount, s.FormworkAmount, s.MasonryAmount, s.ConcreteAmount,
		s.SteelworkAmount, s.CarpentryAmount, s.RoofingAmount, s.TotalMaterialCost,
		s.LaborCost, s.ContingenciesAmount, s.GrandTotalCost, s.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert estimate summary: %w", err)
	}

	return nil
}

func (c *Client) GetEstimateSummary(challengeID string) (*models.EstimateSummary, error) {
	query := `
		SELECT summary_id, challenge_id, analysis_id, earthwork_amount, formwork_amount,
			masonry_amount, concrete_amount, steelwork_amount, carpentry_amount,
			roofing_amount, total_material_cost, labor_cost, contingencies_amount,
			grand_total_cost, created_at
		FROM cost_estimates_summary WHERE challenge_id = ?
	`

	var s models.EstimateSummary
	var createdAt int64

	err := c.db.QueryRow(query, challengeID).Scan(
		&s.ID, &s.ChallengeID, &s.AnalysisID, &s.EarthworkAmount, &s.FormworkAmount,
		&s.MasonryAmount, &s.ConcreteAmount, &s.SteelworkAmount, &s.CarpentryAmount,
		&s.RoofingAmount, &s.TotalMaterialCost, &s.LaborCost, &s.ContingenciesAmount,
		&s.GrandTotalCost, &createdAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get estimate summary: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0)
	return &s, nil
}

func (c *Client) InsertMaterialPrice(m *models.MaterialPrice) error {
	query := `
		INSERT INTO materials_prices (material, brand, size, unit, price, vendor, location, teacher_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.Exec(
		query,
		m.Material, m.Brand, m.Size, m.Unit, m.Price, m.Vendor, m.Location, m.TeacherID,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert material price: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}

	return nil
}

func (c *Client) ListTeacherMaterials(teacherID string) ([]models.MaterialPrice, error) {
	query := `
		SELECT material_id, material, brand, size, unit, price, vendor, location, teacher_id, created_at
		FROM materials_prices WHERE teacher_id = ? ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teacher materials: %w", err)
	}
	defer rows.Close()

	return scanMaterials(rows)
}

// ListAllTeacherMaterials returns price-book entries with a teacher attached,
// skipping rows logged by the pricing aggregator.
func (c *Client) ListAllTeacherMaterials() ([]models.MaterialPrice, error) {
	query := `
		SELECT material_id, material, brand, size, unit, price, vendor, location, teacher_id, created_at
		FROM materials_prices WHERE teacher_id IS NOT NULL AND teacher_id != ''
		ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	defer rows.Close()

	return scanMaterials(rows)
}

func scanMaterials(rows *sql.Rows) ([]models.MaterialPrice, error) {
	var materials []models.MaterialPrice
	for rows.Next() {
		var m models.MaterialPrice
		var createdAt int64
		var brand, size, unit, price, vendor, location, teacherID sql.NullString

		err := rows.Scan(&m.ID, &m.Material, &brand, &size, &unit, &price, &vendor,
			&location, &teacherID, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.Brand = brand.String
		m.Size = size.String
		m.Unit = unit.String
		m.Price = price.String
		m.Vendor = vendor.String
		m.Location = location.String
		m.TeacherID = teacherID.String
		m.CreatedAt = time.Unix(createdAt, 0)
		materials = append(materials, m)
	}

	return materials, rows.Err()
}

func (c *Client) UpdateMaterialPrice(id int64, m *models.MaterialPrice) error {
	query := `
		UPDATE materials_prices
		SET material = ?, brand = ?, size = ?, unit = ?, price = ?, vendor = ?, location = ?
		WHERE material_id = ?
	`

	_, err := c.db.Exec(query, m.Material, m.Brand, m.Size, m.Unit, m.Price, m.Vendor, m.Location, id)
	if err != nil {
		return fmt.Errorf("failed to update material price: %w", err)
	}

	return nil
}

func (c *Client) DeleteMaterialPrice(id int64) error {
	_, err := c.db.Exec(`DELETE FROM materials_prices WHERE material_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete material price: %w", err)
	}
	return nil
}

// UpsertCostEstimate writes a student's estimate header, keeping exactly one
// row per (student, challenge). The existing row's id survives updates so
// child items stay attached.
func (c *Client) UpsertCostEstimate(e *models.CostEstimate) (string, error) {
	var submittedAt interface{}
	if e.SubmittedAt != nil {
		submittedAt = e.SubmittedAt.Unix()
	}

	now := time.Now().Unix()

	query := `
		INSERT INTO students_cost_estimates (estimate_id, student_id, challenge_id, status,
			subtotal_amount, contingency_percentage, contingency_amount, total_amount,
			submitted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, challenge_id) DO UPDATE SET
			status = excluded.status,
			subtotal_amount = excluded.subtotal_amount,
			contingency_percentage = excluded.contingency_percentage,
			contingency_amount = excluded.contingency_amount,
			total_amount = excluded.total_amount,
			submitted_at = excluded.submitted_at,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		e.ID, e.StudentID, e.ChallengeID, e.Status,
		e.SubtotalAmount, e.ContingencyPercentage, e.ContingencyAmount, e.TotalAmount,
		submittedAt, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert cost estimate: %w", err)
	}

	var id string
	err = c.db.QueryRow(
		`SELECT estimate_id FROM students_cost_estimates WHERE student_id = ? AND challenge_id = ?`,
		e.StudentID, e.ChallengeID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to read back estimate id: %w", err)
	}

	return id, nil
}

// ReplaceEstimateItems swaps the full item set for an estimate in one
// transaction. Items are never diffed.
func (c *Client) ReplaceEstimateItems(estimateID string, items []models.CostEstimateItem) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cost_estimate_items WHERE estimate_id = ?`, estimateID); err != nil {
		return fmt.Errorf("failed to clear estimate items: %w", err)
	}

	for _, item := range items {
		id := item.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.Exec(`
			INSERT INTO cost_estimate_items (item_id, estimate_id, cost_category, material_name,
				quantity, unit, unit_price, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, estimateID, item.CostCategory, item.MaterialName,
			item.Quantity, item.Unit, item.UnitPrice, item.Amount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert estimate item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item replace: %w", err)
	}

	return nil
}

func (c *Client) GetEstimateWithItems(studentID, challengeID string) (*models.CostEstimate, []models.CostEstimateItem, error) {
	query := `
		SELECT estimate_id, student_id, challenge_id, status, subtotal_amount,
			contingency_percentage, contingency_amount, total_amount, submitted_at,
			created_at, updated_at
		FROM students_cost_estimates
		WHERE student_id = ? AND challenge_id = ?
	`

	var e models.CostEstimate
	var submittedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, studentID, challengeID).Scan(
		&e.ID, &e.StudentID, &e.ChallengeID, &e.Status, &e.SubtotalAmount,
		&e.ContingencyPercentage, &e.ContingencyAmount, &e.TotalAmount, &submittedAt,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("%w: student %s challenge %s", ErrEstimateNotFound, studentID, challengeID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get cost estimate: %w", err)
	}

	if submittedAt.Valid {
		t := time.Unix(submittedAt.Int64, 0)
		e.SubmittedAt = &t
	}
	e.CreatedAt = time.Unix(createdAt, 0)
	e.UpdatedAt = time.Unix(updatedAt, 0)

	rows, err := c.db.Query(`
		SELECT item_id, estimate_id, cost_category, material_name, quantity, unit, unit_price, amount
		FROM cost_estimate_items WHERE estimate_id = ? ORDER BY cost_category, material_name`,
		e.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list estimate items: %w", err)
	}
	defer rows.Close()

	var items []models.CostEstimateItem
	for rows.Next() {
		var item models.CostEstimateItem
		var unit sql.NullString

		err := rows.Scan(&item.ID, &item.EstimateID, &item.CostCategory, &item.MaterialName,
			&item.Quantity, &unit, &item.UnitPrice, &item.Amount)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		item.Unit = unit.String
		items = append(items, item)
	}

	return &e, items, rows.Err()
}

func (c *Client) UpsertAccuracy(r *models.AccuracyRecord) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO student_accuracy (record_id, student_id, challenge_id, accuracy, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, challenge_id) DO UPDATE SET
			accuracy = excluded.accuracy,
			details = excluded.details,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(query, r.ID, r.StudentID, r.ChallengeID, r.Accuracy, r.Details, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert accuracy record: %w", err)
	}

	logger.Info("Accuracy recorded",
		zap.String("student_id", r.StudentID),
		zap.String("challenge_id", r.ChallengeID),
		zap.Float64("accuracy", r.Accuracy),
	)

	return nil
}

func (c *Client) GetAccuracy(studentID, challengeID string) (*models.AccuracyRecord, error) {
	query := `
		SELECT record_id, student_id, challenge_id, accuracy, details, created_at, updated_at
		FROM student_accuracy WHERE student_id = ? AND challenge_id = ?
	`

	var r models.AccuracyRecord
	var details sql.NullString
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, studentID, challengeID).Scan(
		&r.ID, &r.StudentID, &r.ChallengeID, &r.Accuracy, &details, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accuracy record: %w", err)
	}

	r.Details = details.String
	r.CreatedAt = time.Unix(createdAt, 0)
	r.UpdatedAt = time.Unix(updatedAt, 0)
	return &r, nil
}

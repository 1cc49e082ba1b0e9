package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// listDatabasesHandler handles GET /metadata/dbs.
func (s *Server) listDatabasesHandler(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	dbs, err := s.catalog.ListDatabases(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]DatabaseResponse, len(dbs))
	for i, d := range dbs {
		resp[i] = DatabaseResponse{ID: d.ID, DB: d.Name, Description: d.Description, Tables: []TableResponse{}}
	}
	c.JSON(http.StatusOK, resp)
}

// listTablesHandler handles GET /metadata/tables?db=<id>.
func (s *Server) listTablesHandler(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	dbID, ok := requiredQuery(c, "db")
	if !ok {
		return
	}
	tables, err := s.catalog.ListTables(c.Request.Context(), dbID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(tables) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "Database not found"})
		return
	}

	resp := make([]TableResponse, len(tables))
	for i, t := range tables {
		resp[i] = TableResponse{ID: t.ID, Table: t.Name, Description: t.Description, Type: t.Type}
	}
	c.JSON(http.StatusOK, resp)
}

// listColumnsHandler handles GET /metadata/columns?table=<id>. Table IDs are
// unique across databases, so the db parameter is accepted but not needed.
func (s *Server) listColumnsHandler(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	tableID, ok := requiredQuery(c, "table")
	if !ok {
		return
	}
	cols, err := s.catalog.ListColumns(c.Request.Context(), tableID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(cols) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "Table not found"})
		return
	}

	resp := make([]ColumnResponse, len(cols))
	for i, col := range cols {
		resp[i] = ColumnResponse{
			ID:          col.ID,
			Column:      col.Name,
			Type:        col.Type,
			Description: col.Description,
			IsPrimary:   col.IsPrimary,
			Values:      col.EnumValues,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// listEnumValuesHandler handles GET /metadata/values?column=<id>.
func (s *Server) listEnumValuesHandler(c *gin.Context) {
	if !s.requireCatalog(c) {
		return
	}
	columnID, ok := requiredQuery(c, "column")
	if !ok {
		return
	}
	values, err := s.catalog.EnumValues(c.Request.Context(), columnID)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(values) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "No enum values found"})
		return
	}
	c.JSON(http.StatusOK, values)
}

// listDataTablesHandler handles GET /data/tables.
func (s *Server) listDataTablesHandler(c *gin.Context) {
	if !s.requireData(c) {
		return
	}
	names, err := s.data.DataTables(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

// tablePageHandler handles GET /data/tables/:name?limit=&offset=&filter=.
// filter is a JSON object of column → value equality conditions.
func (s *Server) tablePageHandler(c *gin.Context) {
	if !s.requireData(c) {
		return
	}
	limit, err := intQuery(c, "limit", defaultPageLimit)
	if err == nil && (limit < 1 || limit > maxPageLimit) {
		err = NewValidationError("limit", "limit must be between 1 and "+strconv.Itoa(maxPageLimit))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err == nil && offset < 0 {
		err = NewValidationError("offset", "offset must not be negative")
	}
	if err != nil {
		writeError(c, err)
		return
	}
	filters, err := parseFilter(c.Query("filter"))
	if err != nil {
		writeError(c, err)
		return
	}

	page, err := s.data.ReadTablePage(c.Request.Context(), c.Param("name"), limit, offset, filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TablePageResponse{Data: page.Rows, Total: page.Total, Limit: limit, Offset: offset})
}

func (s *Server) requireCatalog(c *gin.Context) bool {
	if s.catalog == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "metadata catalog not available"})
		return false
	}
	return true
}

func (s *Server) requireData(c *gin.Context) bool {
	if s.data == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "data source not available"})
		return false
	}
	return true
}

func requiredQuery(c *gin.Context, name string) (string, bool) {
	v := c.Query(name)
	if v == "" {
		writeError(c, NewValidationError(name, name+" query parameter is required"))
		return "", false
	}
	return v, true
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError(name, name+" must be an integer")
	}
	return v, nil
}

// parseFilter decodes the filter parameter. Whole numbers become int64 so
// they compare equal to integer columns.
func parseFilter(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, NewValidationError("filter", "filter must be a JSON object of column values")
	}
	for k, v := range obj {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			obj[k] = i
		} else if f, err := n.Float64(); err == nil {
			obj[k] = f
		}
	}
	return obj, nil
}

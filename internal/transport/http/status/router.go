package statushttp

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tickbot/internal/store/journal"
	"tickbot/internal/trader"
)

// UnitSource 返回全部交易单元的快照。
type UnitSource interface {
	Snapshots() []trader.Snapshot
}

// DealSource 查询持仓日志。
type DealSource interface {
	Recent(ctx context.Context, unit string, limit int) ([]journal.Record, error)
}

type Router struct {
	units UnitSource
	deals DealSource
}

func NewRouter(units UnitSource, deals DealSource) *Router {
	return &Router{units: units, deals: deals}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/units", r.handleUnits)
	group.GET("/units/:name", r.handleUnit)
	group.GET("/deals", r.handleDeals)
}

func (r *Router) handleUnits(c *gin.Context) {
	snaps := r.units.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Unit < snaps[j].Unit })
	c.JSON(http.StatusOK, gin.H{"units": snaps})
}

func (r *Router) handleUnit(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	for _, s := range r.units.Snapshots() {
		if s.Unit == name {
			c.JSON(http.StatusOK, s)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unit not found"})
}

func (r *Router) handleDeals(c *gin.Context) {
	if r.deals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "持仓日志未启用"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	records, err := r.deals.Recent(c.Request.Context(), c.Query("unit"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deals":        records,
		"count":        len(records),
		"total_profit": journal.TotalProfit(records),
	})
}

package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"strconv"

	"resume-screening-go/internal/config"
	"resume-screening-go/internal/constants"
	"resume-screening-go/internal/matching"
	"resume-screening-go/internal/storage"
	"resume-screening-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// SearchHandler 负责技能搜索与岗位匹配排名相关的请求
type SearchHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	engine  *matching.Engine
	logger  *log.Logger
}

// NewSearchHandler 创建一个新的 SearchHandler 实例
func NewSearchHandler(cfg *config.Config, storage *storage.Storage, engine *matching.Engine) *SearchHandler {
	return &SearchHandler{
		cfg:     cfg,
		storage: storage,
		engine:  engine,
		logger:  log.New(os.Stdout, "[SearchHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleListRoles 返回岗位目录摘要
// GET /api/v1/search/roles
func (h *SearchHandler) HandleListRoles(ctx context.Context, c *app.RequestContext) {
	roles := h.engine.Catalog().ListRoles()
	c.JSON(consts.StatusOK, map[string]interface{}{
		"total": len(roles),
		"roles": roles,
	})
}

// HandleSearchByRole 按岗位匹配排名候选人
// GET /api/v1/search/by-role?role=backend_developer&cursor=0&limit=20
//
// 首次请求执行完整的评分与排名流程并将"黄金结果集"写入Redis，
// 后续分页请求直接从缓存读取，保证翻页过程中排序稳定。
func (h *SearchHandler) HandleSearchByRole(ctx context.Context, c *app.RequestContext) {
	roleInput := c.Query("role")
	if roleInput == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "role 不能为空"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	cursor, err := strconv.Atoi(c.DefaultQuery("cursor", "0"))
	if err != nil || cursor < 0 {
		cursor = 0
	}

	role, err := h.engine.Catalog().ResolveRole(roleInput)
	if err != nil {
		h.writeMatchError(c, err)
		return
	}

	h.logger.Printf("开始处理岗位 %s 的搜索请求, Limit: %d, Cursor: %d", role.Key, limit, cursor)

	// 1. 检查"黄金结果集"缓存
	cached, totalCount, err := h.storage.Redis.GetCachedRoleSearchResults(ctx, role.Key, int64(cursor), int64(limit))
	if err != nil {
		h.logger.Printf("查询岗位搜索缓存失败 for %s: %v", role.Key, err)
	} else if totalCount > 0 {
		h.logger.Printf("缓存命中 for 岗位 %s. 返回 %d 个候选人。", role.Key, len(cached))
		c.JSON(consts.StatusOK, types.RoleSearchResponse{
			RoleKey:    role.Key,
			RoleTitle:  role.Title,
			Cursor:     int64(cursor),
			NextCursor: int64(cursor + len(cached)),
			Size:       int64(len(cached)),
			TotalCount: totalCount,
			Candidates: cached,
		})
		return
	}

	// 2. 缓存未命中，获取分布式锁后执行完整评分流程
	lockKey := constants.KeyRoleSearchLockPrefix + role.Key
	lockValue, err := h.storage.Redis.AcquireLock(ctx, lockKey, constants.SearchLockTTL)
	if err != nil {
		h.logger.Printf("获取分布式锁失败 for 岗位 %s: %v，继续执行可能导致重复计算", role.Key, err)
	} else if lockValue == "" {
		// 未能获取锁，已有其他请求正在计算相同的结果集
		h.logger.Printf("岗位 %s 的搜索已在处理中，返回等待消息", role.Key)
		c.JSON(consts.StatusAccepted, map[string]interface{}{
			"message":     "搜索请求正在处理中，请稍后重试",
			"status":      "processing",
			"role_key":    role.Key,
			"retry_after": 2,
		})
		return
	} else {
		defer func() {
			released, relErr := h.storage.Redis.ReleaseLock(ctx, lockKey, lockValue)
			if relErr != nil || !released {
				h.logger.Printf("释放锁失败 for 岗位 %s: %v, released: %v", role.Key, relErr, released)
			}
		}()
	}

	ranked, err := h.executeRoleSearch(ctx, role)
	if err != nil {
		h.writeMatchError(c, err)
		return
	}

	// 3. 将完整排名写入缓存，供后续分页复用
	if err := h.storage.Redis.CacheRoleSearchResults(ctx, role.Key, ranked, constants.SearchResultCacheTTL); err != nil {
		h.logger.Printf("缓存岗位搜索结果失败 for %s: %v", role.Key, err)
	}

	// 4. 从刚生成的结果集中取当前页
	end := cursor + limit
	if cursor > len(ranked) {
		cursor = len(ranked)
	}
	if end > len(ranked) {
		end = len(ranked)
	}
	page := ranked[cursor:end]

	c.JSON(consts.StatusOK, types.RoleSearchResponse{
		RoleKey:    role.Key,
		RoleTitle:  role.Title,
		Cursor:     int64(cursor),
		NextCursor: int64(cursor + len(page)),
		Size:       int64(len(page)),
		TotalCount: int64(len(ranked)),
		Candidates: page,
	})
}

// executeRoleSearch 加载候选人技能快照，执行岗位模式评分与排名
func (h *SearchHandler) executeRoleSearch(ctx context.Context, role *matching.JobRole) ([]types.RankedCandidate, error) {
	candidates, err := h.storage.MySQL.LoadAllCandidateSkills(ctx)
	if err != nil {
		return nil, err
	}

	results, err := h.engine.MatchRoleAll(role, candidates)
	if err != nil {
		return nil, err
	}
	ranked := matching.Rank(results, matching.RoleMode)

	return h.toRankedCandidates(ctx, ranked, matching.RoleMode)
}

// HandleSearchByQuery 自由文本技能搜索
// GET /api/v1/search?q=react,node
//
// 查询词之间为OR语义。若整个查询恰好命中岗位目录中的某个岗位，
// 委托给岗位模式评分以提供分数与层级。
func (h *SearchHandler) HandleSearchByQuery(ctx context.Context, c *app.RequestContext) {
	query := c.Query("q")

	terms, err := h.engine.ParseQueryTerms(query)
	if err != nil {
		h.writeMatchError(c, err)
		return
	}

	// 整个查询命中岗位目录时委托岗位模式
	if role, roleErr := h.engine.Catalog().ResolveRole(query); roleErr == nil {
		h.logger.Printf("查询 %q 命中岗位 %s，委托岗位模式评分", query, role.Key)
		ranked, searchErr := h.executeRoleSearch(ctx, role)
		if searchErr != nil {
			h.writeMatchError(c, searchErr)
			return
		}
		c.JSON(consts.StatusOK, types.QuerySearchResponse{
			Query:      query,
			Terms:      terms,
			Mode:       "role",
			TotalCount: len(ranked),
			Candidates: ranked,
		})
		return
	}

	candidates, err := h.storage.MySQL.LoadAllCandidateSkills(ctx)
	if err != nil {
		h.logger.Printf("加载候选人技能快照失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加载候选人数据失败"})
		return
	}

	results := h.engine.MatchQueryAll(terms, candidates)

	// 自由文本模式只保留命中的候选人
	matched := make([]*matching.MatchResult, 0, len(results))
	for _, r := range results {
		if r.IsMatch {
			matched = append(matched, r)
		}
	}
	ranked := matching.Rank(matched, matching.QueryMode)

	out, err := h.toRankedCandidates(ctx, ranked, matching.QueryMode)
	if err != nil {
		h.logger.Printf("补充候选人姓名失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "组装搜索结果失败"})
		return
	}

	c.JSON(consts.StatusOK, types.QuerySearchResponse{
		Query:      query,
		Terms:      terms,
		Mode:       "query",
		TotalCount: len(out),
		Candidates: out,
	})
}

// toRankedCandidates 将引擎结果转换为响应结构并补充候选人姓名
func (h *SearchHandler) toRankedCandidates(ctx context.Context, results []*matching.MatchResult, mode matching.Mode) ([]types.RankedCandidate, error) {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.CandidateID)
	}
	names, err := h.storage.MySQL.GetCandidateNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]types.RankedCandidate, 0, len(results))
	for _, r := range results {
		rc := types.RankedCandidate{
			CandidateID: r.CandidateID,
			Name:        names[r.CandidateID],
			Score:       r.Score,
			Tier:        r.Tier,
			Matched:     r.Matched,
			Missing:     r.Missing,
		}
		if mode == matching.QueryMode {
			rc.MatchedTerms = r.MatchedTerms
			rc.Matched = r.MatchedTerms
			rc.Missing = nil
		}
		out = append(out, rc)
	}
	return out, nil
}

// writeMatchError 将匹配引擎的错误转译为HTTP响应
func (h *SearchHandler) writeMatchError(c *app.RequestContext, err error) {
	switch {
	case errors.Is(err, matching.ErrRoleNotFound):
		c.JSON(consts.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, matching.ErrInvalidQuery), errors.Is(err, matching.ErrInvalidRole):
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Printf("搜索请求处理失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "搜索请求处理失败"})
	}
}

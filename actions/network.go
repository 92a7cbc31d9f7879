package actions

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

// GetNetworkOverview godoc
// swagger:route GET /network/overview network get_network_overview
// Rollup counters of the member and the number of referrals on each level
//
//	Responses:
//	  200: Overview
//	  400: RequestError
//	  401: RequestError
//	  403: RequestError
//	  404: RequestError
func (actions *Actions) GetNetworkOverview(c *gin.Context) {
	rootID, err := getRootID(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	overview, err := actions.service.Overview(c.Request.Context(), getViewer(c), rootID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, overview)
}

// GetDirectReferrals godoc
// swagger:route GET /network/direct network get_direct_referrals
// Paginated list of the members referred directly by the member
func (actions *Actions) GetDirectReferrals(c *gin.Context) {
	rootID, err := getRootID(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	page, limit, err := getPagination(c, actions.service.GetConfig().DefaultPageLimit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	referrals, err := actions.service.DirectReferrals(c.Request.Context(), getViewer(c), rootID, page, limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, referrals)
}

// GetTeamMembersByLevel godoc
// swagger:route GET /network/team/{level} network get_team_members_by_level
// Paginated list of the members found exactly `level` hops below the member
func (actions *Actions) GetTeamMembersByLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil {
		abortWithServiceError(c, errors.Wrap(model.ErrInvalidParams, "invalid level"))
		return
	}
	rootID, err := getRootID(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	page, limit, err := getPagination(c, actions.service.GetConfig().DefaultPageLimit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	members, err := actions.service.TeamMembersByLevel(c.Request.Context(), getViewer(c), rootID, level, page, limit)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, members)
}

// GetNetworkTree godoc
// swagger:route GET /network/tree network get_network_tree
// Nested tree of the member down to the requested depth
//
//	Responses:
//	  200: NestedNode
//	  422: RequestError
func (actions *Actions) GetNetworkTree(c *gin.Context) {
	rootID, err := getRootID(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	actions.networkTree(c, rootID)
}

// GetNetworkTreeFromNode godoc
// swagger:route GET /network/tree/{nodeId} network get_network_tree_from_node
// Drill down into the tree of a member of the caller's network
func (actions *Actions) GetNetworkTreeFromNode(c *gin.Context) {
	nodeID, err := getIDParam(c, "nodeId")
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	actions.networkTree(c, nodeID)
}

func (actions *Actions) networkTree(c *gin.Context, rootID uint64) {
	depth, err := getQueryAsInt(c, "depth", actions.service.GetConfig().DefaultTreeDepth)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	tree, err := actions.service.NetworkTree(c.Request.Context(), getViewer(c), rootID, depth)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, tree)
}

// GetAncestorPath godoc
// swagger:route GET /network/path/{nodeId} network get_ancestor_path
// Breadcrumb from the top of the visible network down to the member
func (actions *Actions) GetAncestorPath(c *gin.Context) {
	nodeID, err := getIDParam(c, "nodeId")
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	path, err := actions.service.AncestorPath(c.Request.Context(), getViewer(c), nodeID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, path)
}

package actions

import (
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	authCache "gitlab.com/paramountdax-exchange/genealogy_api/cache/auth"
	"gitlab.com/paramountdax-exchange/genealogy_api/model"
)

const permRootCreate = "network.root.create"

// RegisterMember godoc
// swagger:route POST /internal/network/members network register_member
// Add a member to the network under the owner of the referral code
//
//	Responses:
//	  201: RegistrationResponse
//	  400: RequestError
//	  409: RequestError
func (actions *Actions) RegisterMember(c *gin.Context) {
	var req model.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithErrorCode(c, BadRequest, err.Error(), model.ErrorCodeInvalidParams)
		return
	}
	canCreateRoot := authCache.HasPerm(getRoleAlias(c), permRootCreate)
	response, err := actions.service.RegisterMember(c.Request.Context(), req, canCreateRoot)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(Created, response)
}

// ChangeMemberStatus godoc
// swagger:route PUT /internal/network/members/{id}/status network change_member_status
// Activate or deactivate a member
func (actions *Actions) ChangeMemberStatus(c *gin.Context) {
	id, err := getIDParam(c, "id")
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	var req model.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithServiceError(c, errors.Wrap(model.ErrInvalidParams, err.Error()))
		return
	}
	member, err := actions.service.ChangeStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, member)
}

// RecomputeEarnings godoc
// swagger:route POST /internal/network/earnings/recompute network recompute_earnings
// Rebuild the earnings rollups from the commission ledger
func (actions *Actions) RecomputeEarnings(c *gin.Context) {
	updated, err := actions.service.RecomputeEarnings(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(OK, map[string]int{"updated": updated})
}

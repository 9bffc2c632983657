package handlers

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"

	"github.com/kaidyth/lexa/internal/api/models"
	"github.com/kaidyth/lexa/internal/inventory"
)

// ListContainers godoc
// @Summary List containers
// @Description Returns every running container whose name matches the glob, or all running containers if name is omitted
// @Tags containers
// @Produce json
// @Param name query string false "shell-style glob, defaults to *"
// @Success 200 {array} models.ContainerResponse
// @Router /containers [get]
func (h *Handler) ListContainers(c *gin.Context) {
	pattern := c.Query("name")
	if pattern == "" {
		pattern = "*"
	}

	out := make([]models.ContainerResponse, 0)

	matcher, err := glob.Compile(pattern)
	if err != nil {
		c.JSON(http.StatusOK, out)
		return
	}

	inv, err := h.inventory(c)
	if err != nil || inv == nil {
		c.JSON(http.StatusOK, out)
		return
	}

	instances := inv.Instances()
	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })

	for _, inst := range instances {
		if !inst.Running() {
			continue
		}
		if !matcher.Match(inst.Name) {
			continue
		}
		out = append(out, toContainerResponse(inst))
	}

	c.JSON(http.StatusOK, out)
}

func (h *Handler) inventory(c *gin.Context) (*inventory.Inventory, error) {
	if h.Cache == nil {
		return nil, nil
	}
	if snap, ok := h.Cache.Get(); ok {
		return snap, nil
	}
	if h.Load == nil {
		return nil, nil
	}
	return h.Cache.GetOrRefill(c.Request.Context(), h.Load)
}

func toContainerResponse(inst inventory.Instance) models.ContainerResponse {
	resp := models.ContainerResponse{
		Name:       inst.Name,
		Status:     inst.Status,
		Location:   inst.Location,
		Interfaces: inst.InterfaceNames(),
		Addresses:  make(map[string][]models.AddressEntry),
	}

	for _, name := range resp.Interfaces {
		iface := inst.Network[name]
		for _, addr := range iface.Addresses {
			if !addr.Resolvable() {
				continue
			}
			resp.Addresses[name] = append(resp.Addresses[name], models.AddressEntry{
				Family:  addr.Family,
				Address: addr.Address,
			})
		}
	}

	return resp
}

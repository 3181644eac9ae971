package reservation

import (
	"github.com/angelmondragon/devicetrade-backend/pkg/enums"
	"github.com/angelmondragon/devicetrade-backend/pkg/statemachine"
)

// InventoryMachine is the inventory item lifecycle. SOLD has no exits; manual
// overrides happen outside the service.
var InventoryMachine = statemachine.New(statemachine.Definition[enums.InventoryStatus]{
	Name: "inventory item",
	Transitions: map[enums.InventoryStatus][]enums.InventoryStatus{
		enums.InventoryStatusAvailable:   {enums.InventoryStatusReserved, enums.InventoryStatusUnavailable},
		enums.InventoryStatusReserved:    {enums.InventoryStatusSold, enums.InventoryStatusAvailable},
		enums.InventoryStatusUnavailable: {enums.InventoryStatusAvailable},
	},
	Terminal: []enums.InventoryStatus{enums.InventoryStatusSold},
})

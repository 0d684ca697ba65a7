package models

import "time"

type EnergyTransferMode string

const (
	EnergyTransferDC            EnergyTransferMode = "DC"
	EnergyTransferACSinglePhase EnergyTransferMode = "AC_single_phase"
	EnergyTransferACTwoPhase    EnergyTransferMode = "AC_two_phase"
	EnergyTransferACThreePhase  EnergyTransferMode = "AC_three_phase"
)

// NotifyEVChargingNeedsRequest is a vehicle's report of what it needs from
// the EVSE it is plugged into.
type NotifyEVChargingNeedsRequest struct {
	EvseID            int               `json:"evse_id" validate:"gt=0"`
	MaxScheduleTuples *int              `json:"max_schedule_tuples,omitempty" validate:"omitempty,gte=0"`
	ChargingNeeds     ChargingNeedsType `json:"charging_needs"`
}

type ChargingNeedsType struct {
	RequestedEnergyTransfer EnergyTransferMode    `json:"requested_energy_transfer" validate:"required,oneof=DC AC_single_phase AC_two_phase AC_three_phase"`
	DepartureTime           *time.Time            `json:"departure_time,omitempty"`
	ACChargingParameters    *ACChargingParameters `json:"ac_charging_parameters,omitempty"`
	DCChargingParameters    *DCChargingParameters `json:"dc_charging_parameters,omitempty"`
}

type ACChargingParameters struct {
	EnergyAmount int `json:"energy_amount"`
	EVMinCurrent int `json:"ev_min_current"`
	EVMaxCurrent int `json:"ev_max_current"`
	EVMaxVoltage int `json:"ev_max_voltage"`
}

type DCChargingParameters struct {
	EVMaxCurrent     int  `json:"ev_max_current"`
	EVMaxVoltage     int  `json:"ev_max_voltage"`
	EnergyAmount     *int `json:"energy_amount,omitempty"`
	EVMaxPower       *int `json:"ev_max_power,omitempty"`
	StateOfCharge    *int `json:"state_of_charge,omitempty" validate:"omitempty,min=0,max=100"`
	EVEnergyCapacity *int `json:"ev_energy_capacity,omitempty"`
	FullSoC          *int `json:"full_soc,omitempty" validate:"omitempty,min=0,max=100"`
	BulkSoC          *int `json:"bulk_soc,omitempty" validate:"omitempty,min=0,max=100"`
}

// ChargingNeeds is a stored charging needs report, linked to the EVSE and
// the active transaction it was reported for.
type ChargingNeeds struct {
	DatabaseID              string                `json:"database_id,omitempty"`
	EvseDatabaseID          string                `json:"evse_database_id"`
	TransactionDatabaseID   string                `json:"transaction_database_id"`
	RequestedEnergyTransfer EnergyTransferMode    `json:"requested_energy_transfer"`
	DepartureTime           *time.Time            `json:"departure_time,omitempty"`
	ACChargingParameters    *ACChargingParameters `json:"ac_charging_parameters,omitempty"`
	DCChargingParameters    *DCChargingParameters `json:"dc_charging_parameters,omitempty"`
	MaxScheduleTuples       *int                  `json:"max_schedule_tuples,omitempty"`
	CreatedAt               time.Time             `json:"created_at,omitempty"`
}

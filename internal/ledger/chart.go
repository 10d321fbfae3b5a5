package ledger

// ChartEntry represents a predefined entry in the PGC chart of accounts.
type ChartEntry struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PredefinedAccounts is the minimal PGC chart installed for a new tenant.
// All of them are system accounts; levels 1-2 are headings and do not
// accept movements.
var PredefinedAccounts = []ChartEntry{
	// Grupo 1: Financiación básica
	{Code: "1", Name: "Financiación básica"},
	{Code: "10", Name: "Capital"},
	{Code: "100", Name: "Capital social"},
	{Code: "11", Name: "Reservas"},
	{Code: "112", Name: "Reserva legal"},
	{Code: "113", Name: "Reservas voluntarias"},
	{Code: "12", Name: "Resultados pendientes de aplicación"},
	{Code: "120", Name: "Remanente"},
	{Code: "121", Name: "Resultados negativos de ejercicios anteriores"},
	{Code: "129", Name: "Resultado del ejercicio"},
	{Code: "17", Name: "Deudas a largo plazo por préstamos recibidos"},
	{Code: "170", Name: "Deudas a largo plazo con entidades de crédito"},

	// Grupo 2: Activo no corriente
	{Code: "2", Name: "Activo no corriente"},
	{Code: "21", Name: "Inmovilizaciones materiales"},
	{Code: "211", Name: "Construcciones"},
	{Code: "216", Name: "Mobiliario"},
	{Code: "217", Name: "Equipos para procesos de información"},
	{Code: "28", Name: "Amortización acumulada del inmovilizado"},
	{Code: "281", Name: "Amortización acumulada del inmovilizado material"},

	// Grupo 3: Existencias
	{Code: "3", Name: "Existencias"},
	{Code: "30", Name: "Comerciales"},
	{Code: "300", Name: "Mercaderías"},

	// Grupo 4: Acreedores y deudores por operaciones comerciales
	{Code: "4", Name: "Acreedores y deudores por operaciones comerciales"},
	{Code: "40", Name: "Proveedores"},
	{Code: "400", Name: "Proveedores"},
	{Code: "41", Name: "Acreedores varios"},
	{Code: "410", Name: "Acreedores por prestaciones de servicios"},
	{Code: "43", Name: "Clientes"},
	{Code: "430", Name: "Clientes"},
	{Code: "46", Name: "Personal"},
	{Code: "465", Name: "Remuneraciones pendientes de pago"},
	{Code: "47", Name: "Administraciones públicas"},
	{Code: "470", Name: "Hacienda Pública, deudora por diversos conceptos"},
	{Code: "472", Name: "Hacienda Pública, IVA soportado"},
	{Code: "473", Name: "Hacienda Pública, retenciones y pagos a cuenta"},
	{Code: "475", Name: "Hacienda Pública, acreedora por conceptos fiscales"},
	{Code: "4751", Name: "Hacienda Pública, acreedora por retenciones practicadas"},
	{Code: "476", Name: "Organismos de la Seguridad Social, acreedores"},
	{Code: "477", Name: "Hacienda Pública, IVA repercutido"},

	// Grupo 5: Cuentas financieras
	{Code: "5", Name: "Cuentas financieras"},
	{Code: "52", Name: "Deudas a corto plazo por préstamos recibidos"},
	{Code: "520", Name: "Deudas a corto plazo con entidades de crédito"},
	{Code: "57", Name: "Tesorería"},
	{Code: "570", Name: "Caja, euros"},
	{Code: "572", Name: "Bancos e instituciones de crédito c/c vista, euros"},

	// Grupo 6: Compras y gastos
	{Code: "6", Name: "Compras y gastos"},
	{Code: "60", Name: "Compras"},
	{Code: "600", Name: "Compras de mercaderías"},
	{Code: "62", Name: "Servicios exteriores"},
	{Code: "621", Name: "Arrendamientos y cánones"},
	{Code: "623", Name: "Servicios de profesionales independientes"},
	{Code: "626", Name: "Servicios bancarios y similares"},
	{Code: "628", Name: "Suministros"},
	{Code: "629", Name: "Otros servicios"},
	{Code: "63", Name: "Tributos"},
	{Code: "630", Name: "Impuesto sobre beneficios"},
	{Code: "64", Name: "Gastos de personal"},
	{Code: "640", Name: "Sueldos y salarios"},
	{Code: "642", Name: "Seguridad Social a cargo de la empresa"},
	{Code: "66", Name: "Gastos financieros"},
	{Code: "662", Name: "Intereses de deudas"},
	{Code: "68", Name: "Dotaciones para amortizaciones"},
	{Code: "681", Name: "Amortización del inmovilizado material"},

	// Grupo 7: Ventas e ingresos
	{Code: "7", Name: "Ventas e ingresos"},
	{Code: "70", Name: "Ventas de mercaderías, de producción propia, de servicios, etc."},
	{Code: "700", Name: "Ventas de mercaderías"},
	{Code: "705", Name: "Prestaciones de servicios"},
	{Code: "75", Name: "Otros ingresos de gestión"},
	{Code: "759", Name: "Ingresos por servicios diversos"},
	{Code: "76", Name: "Ingresos financieros"},
	{Code: "769", Name: "Otros ingresos financieros"},
}

// LookupChartEntry finds a predefined entry by code.
func LookupChartEntry(code string) *ChartEntry {
	for i := range PredefinedAccounts {
		if PredefinedAccounts[i].Code == code {
			return &PredefinedAccounts[i]
		}
	}
	return nil
}

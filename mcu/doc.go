// The mcu package tree provides a hardware abstraction layer for STM32F7
// microcontrollers driving an LCD through the LTDC.
//
// It implements low-level access to the peripherals needed to get pixels on
// the screen: the data cache, the DMA controller and the LCD-TFT display
// controller. Register blocks are passed as pointers, so every driver can be
// pointed at a register block in RAM and run on the host. Use the higher
// level drivers/display package to write applications instead.
package mcu
